/**
 * @description
 * This file handles configuration management for the subscription service.
 * Settings come from environment variables via viper, with defaults for the
 * sweep schedule and broker exchange. Secrets and connection strings are
 * required and validated at load time.
 */
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	ServerPort          string `mapstructure:"SERVER_PORT"`
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	AMQPURL             string `mapstructure:"AMQP_URL"`
	RedisURL            string `mapstructure:"REDIS_URL"`
	JWTSecret           string `mapstructure:"JWT_SECRET"`
	InternalAPIKey      string `mapstructure:"INTERNAL_API_KEY"`
	EventsExchange      string `mapstructure:"EVENTS_EXCHANGE"`
	ExpirySweepSchedule string `mapstructure:"EXPIRY_SWEEP_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8086")
	viper.SetDefault("EVENTS_EXCHANGE", "coursehub.events")
	viper.SetDefault("EXPIRY_SWEEP_SCHEDULE", "0 6 * * *") // daily at 06:00
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("AMQP_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("EXPIRY_SWEEP_SCHEDULE")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	for name, value := range map[string]string{
		"DATABASE_URL":     config.DatabaseURL,
		"AMQP_URL":         config.AMQPURL,
		"JWT_SECRET":       config.JWTSecret,
		"INTERNAL_API_KEY": config.InternalAPIKey,
	} {
		if value == "" {
			return nil, fmt.Errorf("required environment variable %s is not set", name)
		}
	}

	return &config, nil
}
