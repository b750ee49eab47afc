package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// loadDotEnv reads .env from the working directory, then from the project
// root. Variables already set in the environment win.
func loadDotEnv() {
	dotenvOnce.Do(func() {
		if err := godotenv.Load(); err == nil {
			return
		}

		// 获取当前文件的目录
		_, filename, _, _ := runtime.Caller(0)
		rootDir := filepath.Dir(filepath.Dir(filename))
		envPath := filepath.Join(rootDir, ".env")

		if _, err := os.Stat(envPath); err != nil {
			return
		}
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: failed to load %s: %v, falling back to environment variables", envPath, err)
		}
	})
}

// parse fills a T from environ, or from the process environment (after
// loading .env) when environ is nil.
func parse[T any](environ map[string]string) (T, error) {
	if environ == nil {
		loadDotEnv()
	}
	cfg, err := env.ParseAsWithOptions[T](env.Options{Environment: environ})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func mustLoad[T any](load func(map[string]string) (*T, error)) *T {
	cfg, err := load(nil)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}
