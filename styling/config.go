package styling

import (
	"bytes"
	"io"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/mapcascade/styling/cascade"
	"gopkg.in/yaml.v3"
)

const DefaultMaxConcurrentCompiles = 4

type Config struct {
	Compiler              cascade.Options `yaml:"compiler"`
	StylesDir             string          `yaml:"stylesDir"`
	DefaultStyleID        string          `yaml:"defaultStyleId"`
	MaxConcurrentCompiles uint            `yaml:"maxConcurrentCompiles"`
}

func DefaultConfig() Config {
	return Config{
		Compiler:              cascade.DefaultOptions(),
		MaxConcurrentCompiles: DefaultMaxConcurrentCompiles,
	}
}

// LoadConfig reads a YAML config file. Fields missing from the file keep their defaults.
func LoadConfig(fs gofs.Fs, path string) (Config, errorsx.Error) {
	config := DefaultConfig()

	b, err := fs.ReadFile(path)
	if err != nil {
		return Config{}, errorsx.Wrap(err, "path", path)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(b))
	decoder.KnownFields(true)

	err = decoder.Decode(&config)
	if err != nil && err != io.EOF {
		return Config{}, errorsx.Wrap(err, "path", path)
	}

	validationErr := config.Validate()
	if validationErr != nil {
		return Config{}, errorsx.Wrap(validationErr, "path", path)
	}

	return config, nil
}

func (c Config) Validate() errorsx.Error {
	if c.Compiler.MaxPropertyTests <= 0 {
		return errorsx.Errorf("maxPropertyTests must be positive, but was %d", c.Compiler.MaxPropertyTests)
	}

	if c.Compiler.MaxFilterCombinations <= 0 {
		return errorsx.Errorf("maxFilterCombinations must be positive, but was %d", c.Compiler.MaxFilterCombinations)
	}

	if c.MaxConcurrentCompiles == 0 {
		return errorsx.Errorf("maxConcurrentCompiles must be positive")
	}

	return nil
}
