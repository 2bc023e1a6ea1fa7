package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// LoadEnvFile loads a dotenv file into the process environment. Variables
// that are already set win over the file, and a missing file is ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "failed to load env file %s", path)
	}
	return nil
}

// ApplyEnv overrides config values with the environment variables the
// migration has always been configured with. Empty variables are ignored.
func (c *Config) ApplyEnv() error {
	c.MySQL.Host = GetEnv("DB_HOST", c.MySQL.Host)
	c.MySQL.User = GetEnv("DB_USER", c.MySQL.User)
	c.MySQL.Password = GetEnv("DB_PASSWORD", c.MySQL.Password)
	c.MySQL.DBName = GetEnv("DB_NAME", c.MySQL.DBName)
	if value := GetEnv("DB_PORT", ""); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid DB_PORT %q", value)
		}
		c.MySQL.Port = port
	}

	c.Supabase.URL = GetEnv("SUPABASE_URL", c.Supabase.URL)
	c.Supabase.ServiceKey = GetEnv("SUPABASE_SERVICE_KEY", c.Supabase.ServiceKey)
	c.Verify.DatabaseURL = GetEnv("SUPABASE_DB_URL", c.Verify.DatabaseURL)
	c.Archive.MongoDBURI = GetEnv("MONGODB_URI", c.Archive.MongoDBURI)
	return nil
}

// GetEnv returns the value of key, or fallback when it is unset or empty
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
