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
	"github.com/mkrupp/pantry/internal/repo/document"
	"github.com/mkrupp/pantry/internal/svc/authsvc/authclient"
	"github.com/mkrupp/pantry/internal/svc/pantrysvc"
)

const (
	appName = "pantry"
	svcName = "pantryctl"
)

type Config struct {
	config.EnvConfig

	Log        logging.LoggerConfig           `envPrefix:"LOG_"`
	Store      document.StoreConfig           `envPrefix:"STORE_"`
	Inventory  pantrysvc.InventoryConfig      `envPrefix:"INVENTORY_"`
	Shell      pantrysvc.ShellTransportConfig `envPrefix:"SHELL_"`
	AuthClient authclient.HTTPClientConfig    `envPrefix:"AUTH_CLIENT_"`

	// Token resumes a session issued earlier instead of starting signed out.
	Token string `env:"TOKEN" default:""`
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
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.pantryctl")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		}
	}()

	storeFactory, err := document.NewStoreFactory(cfg.Store)
	if err != nil {
		return fmt.Errorf("new store factory: %w", err)
	}

	invSvc, err := pantrysvc.NewDocumentInventoryService(ctx, storeFactory, cfg.Inventory)
	if err != nil {
		return fmt.Errorf("new inventory service: %w", err)
	}
	defer invSvc.Close()

	accounts := authclient.NewHTTPClient(cfg.AuthClient, nil)
	session := authclient.NewTokenSession(accounts)

	if cfg.Token != "" {
		if _, err := session.Resume(ctx, cfg.Token); err != nil {
			log.WarnContext(ctx, "resume session failed", "error", err)
		}
	}

	shell := pantrysvc.NewShellTransport(invSvc, accounts, session, cfg.Shell)

	if err := shell.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run shell: %w", err)
	}

	return nil
}
