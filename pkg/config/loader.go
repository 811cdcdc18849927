package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// noDefaultsTag is a tag name no struct uses, so that the final env pass
// does not reapply envDefault values over the YAML file.
const noDefaultsTag = "envDefaultDisabled"

// Option configures Load.
type Option func(*loader)

type loader struct {
	envFiles    []string
	yamlFile    string
	prefix      string
	environment map[string]string
}

// WithEnvFiles loads the given .env files into the process environment
// before parsing. Variables already set win over the files. Missing files
// are an error.
func WithEnvFiles(files ...string) Option {
	return func(l *loader) {
		l.envFiles = append(l.envFiles, files...)
	}
}

// WithYAMLFile reads base values from a YAML file. An empty path is ignored.
func WithYAMLFile(path string) Option {
	return func(l *loader) {
		l.yamlFile = path
	}
}

// WithPrefix prepends prefix to every env variable name.
func WithPrefix(prefix string) Option {
	return func(l *loader) {
		l.prefix = prefix
	}
}

// WithEnvironment parses vars instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(l *loader) {
		l.environment = vars
	}
}

// Load fills v from, in increasing order of precedence, envDefault tags,
// the YAML file and the environment.
//
// Example:
//
//	type Config struct {
//		Addr  string        `env:"ADDR" envDefault:":8080" yaml:"addr"`
//		Grace time.Duration `env:"GRACE" envDefault:"10s" yaml:"grace"`
//	}
//
//	var cfg Config
//	err := config.Load(&cfg, config.WithYAMLFile("oidc.yaml"), config.WithPrefix("OIDC_"))
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	if len(l.envFiles) > 0 {
		if err := godotenv.Load(l.envFiles...); err != nil {
			return errors.Join(ErrReadingFile, err)
		}
	}
	environment := l.environment
	if environment == nil {
		environment = env.ToMap(os.Environ())
	}

	// Defaults only. Errors are reported by the final pass.
	_ = env.ParseWithOptions(v, env.Options{
		Environment: map[string]string{},
		Prefix:      l.prefix,
	})

	if l.yamlFile != "" {
		raw, err := os.ReadFile(l.yamlFile)
		if err != nil {
			return errors.Join(ErrReadingFile, err)
		}
		if err := yaml.Unmarshal(raw, v); err != nil {
			return errors.Join(ErrParsingConfig, fmt.Errorf("%s: %w", l.yamlFile, err))
		}
	}

	if err := env.ParseWithOptions(v, env.Options{
		Environment:         environment,
		Prefix:              l.prefix,
		DefaultValueTagName: noDefaultsTag,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
