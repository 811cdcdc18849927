package config

import "errors"

var (
	// ErrParsingConfig is returned when the environment or the YAML file cannot be parsed into the config struct
	ErrParsingConfig = errors.New("failed to parse config")

	// ErrReadingFile is returned when an env or YAML file cannot be read
	ErrReadingFile = errors.New("failed to read config file")

	// ErrNilPointer is returned when a nil pointer is provided to Load
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)
