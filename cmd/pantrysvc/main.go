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
	"github.com/mkrupp/pantry/internal/repo/document"
	"github.com/mkrupp/pantry/internal/svc/authsvc/authclient"
	"github.com/mkrupp/pantry/internal/svc/pantrysvc"
)

const (
	appName = "pantry"
	svcName = "pantrysvc"
)

type Config struct {
	config.EnvConfig

	Log        logging.LoggerConfig          `envPrefix:"LOG_"`
	Store      document.StoreConfig          `envPrefix:"STORE_"`
	Inventory  pantrysvc.InventoryConfig     `envPrefix:"INVENTORY_"`
	HTTP       pantrysvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	AuthClient authclient.HTTPClientConfig   `envPrefix:"AUTH_CLIENT_"`
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
		log := logging.GetLogger("cmd.pantrysvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
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

	authClient := authclient.NewHTTPClient(cfg.AuthClient, nil)
	httpTransport := pantrysvc.NewHTTPTransport(invSvc, authClient, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
