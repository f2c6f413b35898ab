package cascade

import "errors"

// Sentinel causes. Callers receive them wrapped with errorsx key/value
// context and can match them with errorsx.Cause.
var (
	ErrMalformedTest         = errors.New("malformed attribute test")
	ErrMalformedSelector     = errors.New("malformed selector")
	ErrMalformedValue        = errors.New("malformed value")
	ErrUnknownProperty       = errors.New("unknown property")
	ErrUnsupportedProjection = errors.New("zoom levels are only supported in the spherical mercator projection")
	ErrResourceLimit         = errors.New("resource limit exceeded")
	ErrUnsortedDeclarations  = errors.New("declarations are not in cascade order")
)
