// Package server wires configuration, storage, delivery and the Engine into
// the otc-server HTTP process and runs it until a shutdown signal.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/MrEthical07/goOTC/dispatch"
	"github.com/MrEthical07/goOTC/internal/server/config"
	"github.com/MrEthical07/goOTC/internal/server/httpapi"
	"github.com/MrEthical07/goOTC/logging"
	"github.com/MrEthical07/goOTC/metrics/export/prometheus"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	engine  *goOTC.Engine
	backend *backend
	handler http.Handler
}

// NewApp opens the configured store and builds the Engine and HTTP handler.
// Logs go to out as JSON lines.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := logging.NewJSON(out, level)

	b, err := openBackend(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	engine, err := buildEngine(c, b, logger, out)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("engine init error: %w", err)
	}
	report := engine.SecurityReport()
	logger.Info(ctx, "security posture",
		"grade", report.Grade,
		"production", report.ProductionMode,
		"rate_limits", report.RateLimitingActive,
		"federated", report.FederatedActive,
		"plaintext_codes", report.PlaintextCodesLogged,
	)

	handler := httpapi.New(engine, httpapi.Options{
		Cookie: httpapi.CookieConfig{
			Name:   c.CookieName,
			Secure: c.CookieSecure,
			MaxAge: c.SessionTTL,
		},
		ClientOrigins: strings.Split(c.ClientOrigin, ","),
		TrustProxy:    c.TrustProxy,
		Metrics:       prometheus.NewPrometheusExporter(engine).Handler(),
		MetricsPath:   c.MetricsPath,
		Logger:        logger,
	})

	return &App{config: c, logger: logger, engine: engine, backend: b, handler: handler}, nil
}

func buildEngine(c *config.Config, b *backend, logger logging.Logger, auditOut io.Writer) (*goOTC.Engine, error) {
	cfg := goOTC.DefaultConfig()
	cfg.ProductionMode = c.ProductionMode
	cfg.Session.PrivateKey = []byte(c.SessionSecret)
	cfg.Session.TTL = c.SessionTTL
	cfg.Sweep.Interval = c.SweepInterval
	cfg.Audit.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Development.LogPlaintextCodes = !c.ProductionMode && c.SMTPHost == ""
	if c.GoogleClientID != "" {
		cfg.Federated.Enabled = true
		cfg.Federated.Audience = c.GoogleClientID
	}

	for _, w := range cfg.Lint().AtLeast(goOTC.LintWarn) {
		logger.Warn(context.Background(), "config lint", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}

	var dispatcher goOTC.Dispatcher
	if c.SMTPHost != "" {
		smtp, err := dispatch.NewSMTP(dispatch.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.EmailFrom,
			FromName: c.EmailFromName,
			SiteName: c.SiteName,
			CodeTTL:  cfg.Code.TTL,
		})
		if err != nil {
			return nil, err
		}
		dispatcher = smtp
	} else {
		dispatcher = dispatch.NewLog(logger)
	}

	return goOTC.New().
		WithConfig(cfg).
		WithCodeStore(b.codes).
		WithIdentityStore(b.identities).
		WithDispatcher(dispatcher).
		WithLogger(logger).
		WithAuditSink(goOTC.NewJSONWriterSink(auditOut)).
		Build()
}

// Handler returns the routed API handler.
func (app *App) Handler() http.Handler {
	return app.handler
}

// Close shuts the Engine down and releases the store.
func (app *App) Close() {
	app.engine.Close()
	app.backend.close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled or a shutdown signal arrives, then
// drains in-flight requests for up to Config.ShutdownTimeout.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	app.initSignalHandler(cancelFunc)

	ln, err := net.Listen("tcp", app.config.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return app.Serve(ctx, ln)
}

// Serve is Run on an existing listener without signal handling.
func (app *App) Serve(ctx context.Context, ln net.Listener) error {
	if app.config.SweepInterval > 0 {
		if err := app.engine.StartSweeper(ctx, app.config.SweepInterval); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	app.logger.Info(ctx, "server started", "addr", ln.Addr().String(), "store", app.config.Store)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	app.engine.StopSweeper()
	return nil
}
