package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all process-wide settings, loaded once at startup and
// injected into the components that need them.
type Config struct {
	ServerPort        string
	JWTSecret         string
	JWTExpHours       int64
	UploadsDir        string
	InitialAdminEmail string
	DB                DBConfig
}

// Load reads configuration from the environment (and .env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET_KEY")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY not set in environment")
	}

	jwtExpHours := int64(24)
	if v := os.Getenv("JWT_EXPIRATION_HOURS"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: %w", err)
		}
		jwtExpHours = parsed
	}

	dbCfg, err := LoadDBConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		JWTSecret:         jwtSecret,
		JWTExpHours:       jwtExpHours,
		UploadsDir:        getEnv("UPLOADS_DIR", "uploads/id-images"),
		InitialAdminEmail: os.Getenv("INITIAL_ADMIN_EMAIL"),
		DB:                *dbCfg,
	}, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
