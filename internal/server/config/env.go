package config

import (
	"fmt"
	"strconv"
	"time"
)

// Environment variables read by parseEnv. Unset or empty values are ignored.
const (
	EnvAddr           = "OTC_ADDR"
	EnvPort           = "PORT"
	EnvClientOrigin   = "OTC_CLIENT_ORIGIN"
	EnvStore          = "OTC_STORE"
	EnvRedisAddr      = "OTC_REDIS_ADDR"
	EnvMongoURI       = "OTC_MONGO_URI"
	EnvPostgresDSN    = "OTC_POSTGRES_DSN"
	EnvSessionSecret  = "OTC_SESSION_SECRET"
	EnvSessionTTL     = "OTC_SESSION_TTL"
	EnvCookieSecure   = "OTC_COOKIE_SECURE"
	EnvEmailFrom      = "OTC_EMAIL_FROM"
	EnvSMTPHost       = "OTC_SMTP_HOST"
	EnvSMTPPort       = "OTC_SMTP_PORT"
	EnvSMTPUser       = "OTC_SMTP_USER"
	EnvSMTPPassword   = "OTC_SMTP_PASSWORD"
	EnvGoogleClientID = "OTC_GOOGLE_CLIENT_ID"
)

// parseEnv overlays environment values onto config. PORT is honoured for
// platforms that only export a port; OTC_ADDR wins when both are set.
func parseEnv(config *Config, getenv func(string) string) error {
	if getenv == nil {
		return nil
	}

	if v := getenv(EnvPort); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("config: %s: %w", EnvPort, err)
		}
		config.Addr = ":" + v
	}

	envString(getenv, EnvAddr, &config.Addr)
	envString(getenv, EnvClientOrigin, &config.ClientOrigin)
	envString(getenv, EnvStore, &config.Store)
	envString(getenv, EnvRedisAddr, &config.RedisAddr)
	envString(getenv, EnvMongoURI, &config.MongoURI)
	envString(getenv, EnvPostgresDSN, &config.PostgresDSN)
	envString(getenv, EnvSessionSecret, &config.SessionSecret)
	envString(getenv, EnvEmailFrom, &config.EmailFrom)
	envString(getenv, EnvSMTPHost, &config.SMTPHost)
	envString(getenv, EnvSMTPUser, &config.SMTPUser)
	envString(getenv, EnvSMTPPassword, &config.SMTPPassword)
	envString(getenv, EnvGoogleClientID, &config.GoogleClientID)

	if v := getenv(EnvSessionTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvSessionTTL, err)
		}
		config.SessionTTL = d
	}
	if v := getenv(EnvCookieSecure); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvCookieSecure, err)
		}
		config.CookieSecure = b
	}
	if v := getenv(EnvSMTPPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvSMTPPort, err)
		}
		config.SMTPPort = port
	}
	return nil
}

func envString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}
