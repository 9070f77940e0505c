package main

import (
	"fmt"
	"os/signal"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	charmine "github.com/Fasthei/charmine"
	"github.com/Fasthei/charmine/config"
	"github.com/Fasthei/charmine/core"
	"github.com/Fasthei/charmine/entity"
	"github.com/Fasthei/charmine/entity/sqlite"
	"github.com/Fasthei/charmine/logging"
	"github.com/Fasthei/charmine/model"
	"github.com/Fasthei/charmine/model/anthropic"
	"github.com/Fasthei/charmine/model/openai"
	"github.com/Fasthei/charmine/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.Initialize(cfgFile)
		if err != nil {
			return err
		}
		cfg, err := config.FromViper(v)
		if err != nil {
			return err
		}

		logger := newLogger(cfg)

		// Config file edits are picked up for observability; a restart is
		// still needed to re-wire stores and the model backend.
		config.Watch(v, func(next *config.Config) {
			logger.Info("config reloaded log-level=%s max-rounds=%d", next.LogLevel, next.MaxRounds)
		})

		mdl, err := newModel(cfg)
		if err != nil {
			return err
		}

		entities, closeEntities, err := newEntityStore(cfg)
		if err != nil {
			return err
		}
		defer closeEntities()

		orch := charmine.New(mdl, func(o *charmine.Options) {
			o.MaxRounds = cfg.MaxRounds
			o.RunTimeout = cfg.RunTimeout
			o.CoOccurWindow = cfg.CoOccurWindow
			o.KeywordWindow = cfg.KeywordWindow
			o.EntityStore = entities
			o.Logger = logger
		})
		defer orch.Close()

		srv := server.New(orch, func(o *server.Options) {
			o.Addr = cfg.ListenAddr
			o.StatePath = cfg.StatePath
			o.Logger = logger
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger.Info("starting server addr=%s provider=%s", cfg.ListenAddr, cfg.ModelProvider)
		return srv.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newLogger(cfg *config.Config) logging.Logger {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.File = cfg.LogFile
	lc.Component = "charmine"
	return logging.NewLogger(lc)
}

func newModel(cfg *config.Config) (model.Model, error) {
	switch cfg.ModelProvider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.ModelName != "" {
				o.Model = anthropicsdk.Model(cfg.ModelName)
			}
		}), nil
	case "mock":
		return model.NewMockModel("mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}

func newEntityStore(cfg *config.Config) (core.EntityStore, func(), error) {
	if cfg.EntityDB == "" {
		return entity.NewInMemoryStore(), func() {}, nil
	}
	s, err := sqlite.Open(cfg.EntityDB)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { _ = s.Close() }, nil
}
