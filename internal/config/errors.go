package config

import "errors"

// Validation errors returned by Config.Validate.
var (
	ErrMissingEndpoint  = errors.New("automation engine endpoint not set (env " + EnvEndpoint + " or --endpoint)")
	ErrMissingUsername  = errors.New("account username not set (env " + EnvUsername + ")")
	ErrMissingPassword  = errors.New("account password not set (env " + EnvPassword + ")")
	ErrInvalidBaseURL   = errors.New("invalid base URL: must be absolute")
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
	ErrInvalidTimeout   = errors.New("invalid timeout: must be positive")
)
