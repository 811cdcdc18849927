// Package config loads application configuration into tagged Go structs.
//
// Values come from three layers, later ones winning:
//
//  1. envDefault struct tags,
//  2. an optional YAML file (yaml tags, via gopkg.in/yaml.v3),
//  3. the environment (env tags, via github.com/caarlos0/env), optionally
//     seeded from .env files with github.com/joho/godotenv.
//
// # Usage
//
//	type Config struct {
//	    Settings usermanager.Settings `envPrefix:"OIDC_" yaml:"oidc"`
//	    Redis    redis.Config         `yaml:"redis"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg,
//	    config.WithEnvFiles(".env"),
//	    config.WithYAMLFile("oidc.yaml"),
//	); err != nil {
//	    log.Fatal(err)
//	}
//
// Fields without a value in any layer keep their zero value; validate the
// result with the domain type's own Validate method.
package config
