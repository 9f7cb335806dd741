package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "modernc.org/sqlite"

	"github.com/caseflow/caseflow"
	"github.com/caseflow/caseflow/adapters/kafkasink"
	"github.com/caseflow/caseflow/adapters/memstore"
	"github.com/caseflow/caseflow/adapters/sqlstore"
	"github.com/caseflow/caseflow/server"
)

type config struct {
	ListenAddr   string   `mapstructure:"listen_addr"`
	StoreDriver  string   `mapstructure:"store_driver"`
	SQLitePath   string   `mapstructure:"sqlite_path"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

func loadConfig(configPath string) (config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("store_driver", "memory")
	v.SetDefault("sqlite_path", "caseflow.db")
	v.SetDefault("kafka_topic", "caseflow.audit")

	v.SetEnvPrefix("CASEFLOW")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return config{}, err
		}
	}

	var c config
	if err := v.Unmarshal(&c); err != nil {
		return config{}, err
	}

	return c, nil
}

func buildServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow control API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			return serve(cmd.Context(), c)
		},
	}
}

func serve(ctx context.Context, c config) error {
	store, cleanup, err := buildStore(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	graph := caseflow.ClaimWorkflow()

	var opts []caseflow.Option
	if len(c.KafkaBrokers) > 0 {
		sink := kafkasink.New(c.KafkaBrokers, c.KafkaTopic)
		defer sink.Close()
		opts = append(opts, caseflow.WithEventSink(sink))
	}

	engine := caseflow.New(graph, store, opts...)

	srv := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           server.New(engine, graph).Handler(),
		ReadHeaderTimeout: time.Second * 10,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, c config) (caseflow.RecordStore, func(), error) {
	switch c.StoreDriver {
	case "memory":
		return memstore.New(), func() {}, nil
	case "sqlite":
		db, err := sql.Open("sqlite", c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}

		store := sqlstore.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return store, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver: %v", c.StoreDriver)
	}
}
