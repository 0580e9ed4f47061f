package config

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenv reads variables from the given files, .env when none are given.
// Variables already present in the environment win. A missing file is not
// an error, the first call per process does the work.
func LoadDotenv(files ...string) error {
	var err error
	dotenvOnce.Do(func() {
		if len(files) == 0 {
			files = []string{".env"}
		}
		for _, f := range files {
			if lerr := godotenv.Load(f); lerr != nil && !errors.Is(lerr, fs.ErrNotExist) {
				err = errors.Join(ErrLoadingDotenv, lerr)
				return
			}
		}
	})
	return err
}

// Load parses environment variables into a new T using its env struct tags.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	cfg, err := config.Load[Config]()
func Load[T any]() (T, error) {
	if err := LoadDotenv(); err != nil {
		var zero T
		return zero, err
	}
	return parse[T](env.Options{})
}

func parse[T any](opts env.Options) (T, error) {
	cfg, err := env.ParseAsWithOptions[T](opts)
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}
