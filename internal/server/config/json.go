package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Duration accepts "90s"-style strings and integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// JSONConfig is the file representation of Config. Absent fields keep the
// value already in Config.
type JSONConfig struct {
	Addr         *string `json:"addr"`
	ClientOrigin *string `json:"client_origin"`

	Store         *string `json:"store"`
	RedisAddr     *string `json:"redis_addr"`
	RedisPrefix   *string `json:"redis_prefix"`
	MongoURI      *string `json:"mongo_uri"`
	MongoDatabase *string `json:"mongo_database"`
	PostgresDSN   *string `json:"postgres_dsn"`

	SessionSecret *string   `json:"session_secret"`
	SessionTTL    *Duration `json:"session_ttl"`
	CookieName    *string   `json:"cookie_name"`
	CookieSecure  *bool     `json:"cookie_secure"`

	EmailFrom     *string `json:"email_from"`
	EmailFromName *string `json:"email_from_name"`
	SiteName      *string `json:"site_name"`
	SMTPHost      *string `json:"smtp_host"`
	SMTPPort      *int    `json:"smtp_port"`
	SMTPUser      *string `json:"smtp_user"`
	SMTPPassword  *string `json:"smtp_password"`

	GoogleClientID *string `json:"google_client_id"`

	SweepInterval   *Duration `json:"sweep_interval"`
	ShutdownTimeout *Duration `json:"shutdown_timeout"`
	TrustProxy      *bool     `json:"trust_proxy"`
	ProductionMode  *bool     `json:"production_mode"`
	LogLevel        *string   `json:"log_level"`
	MetricsPath     *string   `json:"metrics_path"`
}

// jsonConfigPath extracts the -c or -config value from args. Other flags
// are ignored.
func jsonConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(filterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}

// parseJSON overlays the file at path onto config. An empty path is a no-op.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var c JSONConfig
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&config.Addr, c.Addr)
	setString(&config.ClientOrigin, c.ClientOrigin)
	setString(&config.Store, c.Store)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPrefix, c.RedisPrefix)
	setString(&config.MongoURI, c.MongoURI)
	setString(&config.MongoDatabase, c.MongoDatabase)
	setString(&config.PostgresDSN, c.PostgresDSN)
	setString(&config.SessionSecret, c.SessionSecret)
	setDuration(&config.SessionTTL, c.SessionTTL)
	setString(&config.CookieName, c.CookieName)
	setBool(&config.CookieSecure, c.CookieSecure)
	setString(&config.EmailFrom, c.EmailFrom)
	setString(&config.EmailFromName, c.EmailFromName)
	setString(&config.SiteName, c.SiteName)
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort != nil {
		config.SMTPPort = *c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.GoogleClientID, c.GoogleClientID)
	setDuration(&config.SweepInterval, c.SweepInterval)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
	setBool(&config.TrustProxy, c.TrustProxy)
	setBool(&config.ProductionMode, c.ProductionMode)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.MetricsPath, c.MetricsPath)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = v.Duration
	}
}

// filterArgs keeps only the allowed flags and their values. It accepts
// "-flag value" and "-flag=value".
func filterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}
	return filtered
}
