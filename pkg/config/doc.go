// Package config loads typed configuration from environment variables.
//
// Struct fields are mapped with caarlos0/env tags. A .env file in the working
// directory is read once per process through godotenv; variables that are
// already set are never overridden by it.
//
//	type StripeConfig struct {
//		SecretKey string `env:"STRIPE_SECRET_KEY,required"`
//	}
//
//	cfg, err := config.Load[StripeConfig]()
package config
