package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/pantry/internal/infra/config"
	"github.com/mkrupp/pantry/internal/infra/logging"
	"github.com/mkrupp/pantry/internal/infra/transport/http"
	"github.com/mkrupp/pantry/internal/repo/user"
	"github.com/mkrupp/pantry/internal/svc/authsvc"
)

const (
	appName = "pantry"
	svcName = "authsvc"
)

type Config struct {
	config.EnvConfig

	Log  logging.LoggerConfig            `envPrefix:"LOG_"`
	Auth authsvc.AuthConfig              `envPrefix:"AUTH_"`
	HTTP authsvc.HTTPTransportConfig     `envPrefix:"HTTP_"`
	User user.SQLiteUserRepositoryConfig `envPrefix:"USER_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.authsvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	authSvc, err := authsvc.NewAuthService(
		user.SQLiteUserRepositoryFactory(cfg.User),
		cfg.Auth,
	)
	if err != nil {
		return fmt.Errorf("new auth service: %w", err)
	}
	defer authSvc.Close()

	httpTransport := authsvc.NewHTTPTransport(authSvc, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
