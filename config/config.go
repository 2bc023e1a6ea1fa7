package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMappingsFile  = "migration_mappings.json"
	DefaultPasswordsFile = "temp_passwords.json"
	DefaultHTTPTimeout   = 30 * time.Second
)

// MySQLConfig holds the source database connection parameters
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

// SupabaseConfig holds the destination project URL and the service role key
type SupabaseConfig struct {
	URL        string        `yaml:"url"`
	ServiceKey string        `yaml:"service_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

// VerifyConfig controls the optional destination row count verification
type VerifyConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DatabaseURL string `yaml:"database_url"`
}

// ArchiveConfig controls the optional MongoDB run archive
type ArchiveConfig struct {
	MongoDBURI string `yaml:"mongodb_uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// OutputConfig names the two artifact files written after a run
type OutputConfig struct {
	MappingsFile  string `yaml:"mappings_file"`
	PasswordsFile string `yaml:"passwords_file"`
}

// config struct to map config.yaml
type Config struct {
	MySQL    MySQLConfig    `yaml:"mysql"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Verify   VerifyConfig   `yaml:"verify"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Output   OutputConfig   `yaml:"output"`
}

// Default returns a config with the same defaults the migration always used
func Default() *Config {
	return &Config{
		MySQL: MySQLConfig{
			Host: "localhost",
			Port: 3306,
			User: "root",
		},
		Supabase: SupabaseConfig{
			Timeout: DefaultHTTPTimeout,
		},
		Archive: ArchiveConfig{
			Database:   "school_migration",
			Collection: "runs",
		},
		Output: OutputConfig{
			MappingsFile:  DefaultMappingsFile,
			PasswordsFile: DefaultPasswordsFile,
		},
	}
}

// LoadConfig reads the yaml file on top of the defaults. A missing file is
// not an error since every setting can come from the environment.
func LoadConfig(filepath string) (*Config, error) {
	cfg := Default()
	if filepath == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(filepath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	return cfg, nil
}

// Validate checks the settings without which the migration cannot start
func (c *Config) Validate() error {
	if c.MySQL.DBName == "" {
		return errors.New("source database name is not set (DB_NAME)")
	}
	if c.MySQL.Port <= 0 {
		return errors.Errorf("invalid source database port %d (DB_PORT)", c.MySQL.Port)
	}
	if c.Supabase.URL == "" {
		return errors.New("destination URL is not set (SUPABASE_URL)")
	}
	if c.Supabase.ServiceKey == "" {
		return errors.New("service role key is not set (SUPABASE_SERVICE_KEY), get it from Supabase Dashboard → Settings → API → service_role key")
	}
	if c.Output.MappingsFile == "" || c.Output.PasswordsFile == "" {
		return errors.New("output file names must not be empty")
	}
	return nil
}
