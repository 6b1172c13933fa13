package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Env  string `mapstructure:"env"`
		Name string `mapstructure:"name"`
	} `mapstructure:"app"`
	Server struct {
		Port            string `mapstructure:"port"`
		ReadTimeout     int    `mapstructure:"readTimeout"`
		WriteTimeout    int    `mapstructure:"writeTimeout"`
		ShutdownTimeout int    `mapstructure:"shutdownTimeout"`
	} `mapstructure:"server"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Enabled         bool     `mapstructure:"enabled"`
		Brokers         []string `mapstructure:"brokers"`
		OwnerInboxTopic string   `mapstructure:"ownerInboxTopic"`
	} `mapstructure:"kafka"`
	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"smtp"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
	Notify struct {
		DeliveryTimeout time.Duration `mapstructure:"deliveryTimeout"`
	} `mapstructure:"notify"`
}

// Load загружает конфигурацию из файла config.yaml и переменных окружения.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// .env опционален, отсутствие файла не считается ошибкой
		_ = godotenv.Load()
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv() // Чтение переменных окружения

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Файл конфигурации опционален: при его отсутствии работаем
		// на дефолтах и переменных окружения.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setDefaults задает значения по умолчанию для локального запуска.
func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.name", "subscription-service")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.readTimeout", 10)
	viper.SetDefault("server.writeTimeout", 10)
	viper.SetDefault("server.shutdownTimeout", 15)
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.ownerInboxTopic", "owner_notifications")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("notify.deliveryTimeout", 10*time.Second)
}
