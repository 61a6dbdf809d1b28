package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting. All values come from the environment;
// a local .env file is loaded when present.
type Config struct {
	DatabaseURL  string
	ServerPort   int
	JWTSecretKey string

	AdminUsername     string
	AdminPasswordHash string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	DeckRulesPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	adminUser := os.Getenv("ADMIN_USERNAME")
	adminHash := os.Getenv("ADMIN_PASSWORD_HASH")
	if adminUser == "" || adminHash == "" {
		return nil, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD_HASH environment variables are required")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	rulesPath := os.Getenv("DECK_RULES_PATH")
	if rulesPath == "" {
		rulesPath = "deckrules.json"
	}

	return &Config{
		DatabaseURL:       dbURL,
		ServerPort:        port,
		JWTSecretKey:      jwtKey,
		AdminUsername:     adminUser,
		AdminPasswordHash: adminHash,
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		DeckRulesPath:     rulesPath,
	}, nil
}

// R2Configured reports whether object storage credentials are present.
// Exports and QR uploads are disabled without them.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}
