package config

import (
	"flag"
	"fmt"
	"io"
)

// parseFlags overlays command-line flags onto config. Secrets are not
// accepted as flags; supply them through the JSON file or the environment.
//
// Supported flags:
//
//	-a string            HTTP bind address
//	-store string        memory, miniredis, redis, mongo or postgres
//	-redis string        Redis address
//	-mongo string        MongoDB URI
//	-mongo-db string     MongoDB database
//	-pg string           PostgreSQL DSN
//	-origin string       allowed client origin
//	-cookie-secure       Secure, SameSite=None session cookie
//	-smtp-host string    SMTP relay host
//	-smtp-port int       SMTP relay port
//	-smtp-user string    SMTP username
//	-from string         sender address
//	-google-client-id    federated login audience
//	-session-ttl dur     session lifetime
//	-sweep dur           expired code sweep interval, 0 disables
//	-trust-proxy         take the client address from X-Forwarded-For
//	-production          disable development affordances
//	-log-level string    debug, info, warn or error
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("otc-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// consumed by jsonConfigPath
	fs.String("c", "", "path to config file (short)")
	fs.String("config", "", "path to config file")

	fs.StringVar(&config.Addr, "a", config.Addr, "address and port to run server")
	fs.StringVar(&config.Store, "store", config.Store, "storage backend")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.MongoURI, "mongo", config.MongoURI, "mongodb uri")
	fs.StringVar(&config.MongoDatabase, "mongo-db", config.MongoDatabase, "mongodb database")
	fs.StringVar(&config.PostgresDSN, "pg", config.PostgresDSN, "postgres dsn")
	fs.StringVar(&config.ClientOrigin, "origin", config.ClientOrigin, "allowed client origin")
	fs.BoolVar(&config.CookieSecure, "cookie-secure", config.CookieSecure, "secure session cookie")
	fs.StringVar(&config.SMTPHost, "smtp-host", config.SMTPHost, "smtp host")
	fs.IntVar(&config.SMTPPort, "smtp-port", config.SMTPPort, "smtp port")
	fs.StringVar(&config.SMTPUser, "smtp-user", config.SMTPUser, "smtp username")
	fs.StringVar(&config.EmailFrom, "from", config.EmailFrom, "sender address")
	fs.StringVar(&config.GoogleClientID, "google-client-id", config.GoogleClientID, "google client id")
	fs.DurationVar(&config.SessionTTL, "session-ttl", config.SessionTTL, "session lifetime")
	fs.DurationVar(&config.SweepInterval, "sweep", config.SweepInterval, "sweep interval")
	fs.BoolVar(&config.TrustProxy, "trust-proxy", config.TrustProxy, "trust X-Forwarded-For")
	fs.BoolVar(&config.ProductionMode, "production", config.ProductionMode, "production mode")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: flags: %w", err)
	}
	return nil
}
