package cascade

// ResolvePropertiesForFilter walks cascade-sorted declarations and returns the
// winning value of each property under filter. The second return value is false
// when the rule must be suppressed, either because display resolved to none or
// because no property was set.
func ResolvePropertiesForFilter(declarations []Declaration, filter Filter) (map[string]Value, bool) {
	properties := make(map[string]Value)
	for _, declaration := range declarations {
		if !SelectorCompatibleWithFilter(declaration.Selector, filter) {
			continue
		}
		properties[declaration.Property] = declaration.Value
	}

	display, ok := properties[DisplayProperty]
	if ok {
		if s, isString := display.(StringValue); isString && string(s) == DisplayNone {
			return nil, false
		}
		delete(properties, DisplayProperty)
	}

	if len(properties) == 0 {
		return nil, false
	}

	return properties, true
}
