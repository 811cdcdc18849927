package main

import (
	"time"

	"github.com/dmitrymomot/oidckit/pkg/httpserver"
	"github.com/dmitrymomot/oidckit/pkg/redis"
	"github.com/dmitrymomot/oidckit/pkg/usermanager"
)

type appConfig struct {
	OIDC  usermanager.Settings `envPrefix:"OIDC_" yaml:"oidc"`
	Redis redis.Config         `yaml:"redis"`
	HTTP  httpserver.Config    `yaml:"http"`
	Log   logConfig            `yaml:"log"`

	Sessions sessionConfig `yaml:"sessions"`

	SweepSchedule string        `env:"OIDC_SWEEP_SCHEDULE" envDefault:"@every 5m" yaml:"sweep_schedule"`
	LoginTimeout  time.Duration `env:"OIDC_LOGIN_TIMEOUT" envDefault:"5m" yaml:"login_timeout"`
}

type logConfig struct {
	Env    string `env:"APP_ENV" envDefault:"development" yaml:"env"`
	Level  string `env:"LOG_LEVEL" yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}
