// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

type Config struct {
	Telegram struct {
		Token          string
		WebhookURL     string
		OperatorChatID int64
	}
	DB     DBConfig
	Server struct {
		Port string
	}
	Notify struct {
		Debounce time.Duration
	}
	Carparks        []string
	ShutdownTimeout time.Duration
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Paths where to look for the config file
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("$HOME/.dispatch-bot")

	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Notify.Debounce", 5*time.Minute)
	v.SetDefault("Carparks", []string{"АТП-1", "АТП-2", "Подрядчики"})
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)

	// Enable environment variables to override config values
	v.AutomaticEnv()

	err := v.ReadInConfig()

	// No config file: fall back to environment variables only
	if err != nil {
		fmt.Printf("Config file not found: %v\n", err)

		cfg := &Config{}

		cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
		cfg.Telegram.WebhookURL = os.Getenv("TELEGRAM_WEBHOOK_URL")
		cfg.Telegram.OperatorChatID, _ = strconv.ParseInt(os.Getenv("OPERATOR_CHAT_ID"), 10, 64)
		cfg.DB.Host = getEnvOr("DB_HOST", "localhost")
		cfg.DB.Port = getEnvOr("DB_PORT", "5432")
		cfg.DB.User = getEnvOr("DB_USER", "postgres")
		cfg.DB.Password = getEnvOr("DB_PASSWORD", "postgres")
		cfg.DB.DBName = getEnvOr("DB_NAME", "dispatch_bot")
		cfg.DB.SSLMode = getEnvOr("DB_SSL_MODE", "disable")
		cfg.DB.MaxOpenConns = 20
		cfg.DB.MaxIdleConns = 10
		cfg.DB.ConnLifetime = 5 * time.Minute
		cfg.Server.Port = getEnvOr("SERVER_PORT", "8080")
		cfg.Notify.Debounce = 5 * time.Minute
		cfg.Carparks = []string{"АТП-1", "АТП-2", "Подрядчики"}
		if raw := os.Getenv("CARPARKS"); raw != "" {
			cfg.Carparks = strings.Split(raw, ",")
		}
		cfg.ShutdownTimeout = 10 * time.Second

		return cfg, nil
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			envValue := os.Getenv(envVar)
			if envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Helper function to get environment variable with default value
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
