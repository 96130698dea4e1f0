package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/clinrec/recordstore/internal/db"
)

// Config is the full service configuration: database connection settings plus
// the identity this deployment commits versions under.
type Config struct {
	DB db.Config

	// SystemID identifies this deployment in every audit it commits. A UUID,
	// ISO OID or reverse-domain internet id.
	SystemID string

	// MigrationsPath points at the SQL migration directory.
	MigrationsPath string
}

func Load(configPath string) (Config, error) {
	// Start with defaults
	cfg := Config{
		DB:             db.DefaultConfig(),
		MigrationsPath: "./migrations",
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()              // allow environment overrides
	v.SetEnvPrefix("RECORDSTORE") // map env vars like RECORDSTORE_DATABASE.HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("store.system_id")
	v.BindEnv("store.migrations_path")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	// Override defaults if values exist
	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("store.system_id") {
		cfg.SystemID = v.GetString("store.system_id")
	}
	if v.IsSet("store.migrations_path") {
		cfg.MigrationsPath = v.GetString("store.migrations_path")
	}

	if cfg.SystemID == "" {
		return Config{}, fmt.Errorf("store.system_id is required")
	}

	return cfg, nil
}
