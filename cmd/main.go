package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"import_panel/internal/channel"
	"import_panel/internal/ckan"
	"import_panel/internal/config"
	"import_panel/internal/handlers"
	"import_panel/internal/logger"
	"import_panel/internal/panel"
	"import_panel/internal/repository"
	"import_panel/internal/repository/db"
	"import_panel/internal/server"
	"import_panel/internal/service"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:           "importpanel",
		Short:         "Realtime import status panels for CKAN import jobs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "configs", "Directory holding config.yml")

	rootCmd.AddCommand(serveCmd(), watchCmd(), configsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads config.yml and IMPORTPANEL_* overrides; the logger
// level follows the config.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(viper.New(), configDir, ".")
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.Get(cfg.LogLevel), nil
}

func newClient(cfg *config.Config, log *logger.Logger) *ckan.Client {
	return ckan.NewClient(ckan.Options{
		BaseURL:   cfg.CKAN.BaseURL,
		APIKey:    cfg.CKAN.APIKey,
		Languages: cfg.CKAN.Languages,
		Timeout:   cfg.CKAN.Timeout,
		Log:       log,
	})
}

// channelDialer gives every panel its own event channel session.
func channelDialer(cfg *config.Config, client *ckan.Client, log *logger.Logger) panel.DialFunc {
	return panel.DialChannel(channel.Options{
		URL:   cfg.CKAN.ChannelURL(),
		Token: client.GetWSToken,
		Log:   log,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the panel HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			sqlDB, err := db.InitDB(cfg.DB.Path)
			if err != nil {
				log.Errorw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
				return err
			}
			defer func() {
				if cerr := sqlDB.Close(); cerr != nil {
					log.Warnw("failed to close sqlite", "err", cerr)
				}
			}()

			client := newClient(cfg, log)
			repos := repository.NewRepository(sqlDB)
			services := service.NewService(service.Deps{
				Repos:  repos,
				Source: client,
				Dial:   channelDialer(cfg, client, log),
				Defaults: service.PanelDefaults{
					FlushInterval: cfg.Panel.FlushInterval,
					LogCap:        cfg.Panel.LogCap,
					ScrollEpsilon: cfg.Panel.ScrollEpsilon,
				},
				Log: log,
			})
			apiHandler := handlers.NewHandler(services, log)

			srv := server.New(cfg.Port, apiHandler.InitRoutes())
			errc := make(chan error, 1)
			go func() { errc <- srv.Run() }()
			log.Infow("server_started", "port", cfg.Port, "ckan", cfg.CKAN.BaseURL, "channel", cfg.CKAN.ChannelURL())

			return waitForShutdown(errc, srv, services, log)
		},
	}
}

// waitForShutdown blocks until a signal or a server failure, then unmounts
// every panel and drains in-flight requests.
func waitForShutdown(errc <-chan error, srv *server.Server, services *service.Service, log *logger.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		log.Infow("shutting down server...")
	case runErr = <-errc:
		log.Errorw("server stopped", "err", runErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	services.Panels.Shutdown()
	return runErr
}
