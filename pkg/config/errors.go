package config

import "errors"

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrLoadingDotenv = errors.New("failed to load dotenv file")
)
