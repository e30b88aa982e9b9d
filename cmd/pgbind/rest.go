package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pgbind/pgbind/pkg/history"
	"github.com/pgbind/pgbind/pkg/history/natsink"
	"github.com/pgbind/pgbind/pkg/history/pgsink"
	mw "github.com/pgbind/pgbind/pkg/httputil/middleware"
	"github.com/pgbind/pgbind/pkg/metrics"
	pgxutil "github.com/pgbind/pgbind/pkg/pgx"
	"github.com/pgbind/pgbind/pkg/rest"
	"github.com/pgbind/pgbind/pkg/schema"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Start the REST API server",
	Long:  `Starts a REST API server that provides filtered access to PostgreSQL data through HTTP endpoints`,
	Run:   runRESTServer,
}

func init() {
	f := restCmd.Flags()
	f.StringP("rest.pg.connString", "c", "", "PostgreSQL connection string")
	f.StringP("rest.listenAddr", "l", "", "REST server listen address")
	f.String("rest.baseURL", "", "Base URL for API endpoints")
	f.String("rest.schema", "", "Database schema to expose")

	viper.BindPFlags(f)
	rootCmd.AddCommand(restCmd)
}

func runRESTServer(cmd *cobra.Command, args []string) {
	if cfg == nil {
		log.Fatal("Configuration not loaded")
	}

	connString := viper.GetString("rest.pg.connString")
	if connString == "" {
		connString = cfg.REST.PG.ConnString
	}
	if connString == "" {
		connString = os.Getenv("PGBIND_REST_PG_CONN_STRING")
	}
	if connString == "" {
		log.Fatal("PostgreSQL connection string required")
	}

	logger, err := newLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// flag overrides
	if listenAddr := viper.GetString("rest.listenAddr"); listenAddr != "" {
		cfg.REST.ListenAddr = listenAddr
	}
	if baseURL := viper.GetString("rest.baseURL"); baseURL != "" {
		cfg.REST.BaseURL = baseURL
	}
	if schemaName := viper.GetString("rest.schema"); schemaName != "" {
		cfg.REST.Schema = schemaName
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pools := pgxutil.NewPoolManager()
	if err := pools.Add(ctx, pgxutil.Pool{Name: "default", ConnString: connString}); err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pools.Close()
	pool, err := pools.Active()
	if err != nil {
		log.Fatalf("Failed to get connection pool: %v", err)
	}

	cache, err := schema.NewCache(pool, logger)
	if err != nil {
		log.Fatalf("Failed to create schema cache: %v", err)
	}

	opts := []rest.Option{
		rest.WithBaseURL(cfg.REST.BaseURL),
		rest.WithSchema(cfg.REST.Schema),
		rest.WithPagination(rest.Pagination{
			DefaultLimit: cfg.REST.Pagination.DefaultLimit,
			MaxLimit:     cfg.REST.Pagination.MaxLimit,
		}),
	}

	if cfg.History.Enabled {
		tracker, err := buildTracker(ctx, cache, logger)
		if err != nil {
			log.Fatalf("Failed to configure history tracking: %v", err)
		}
		opts = append(opts, rest.WithTracker(tracker))
	}

	server := rest.NewServer(cache, logger, opts...)

	server.Use(
		mw.RequestID,
		mw.CORSWithOptions(nil),
	)
	if logLevel != "none" {
		server.Use(mw.LoggerWithOptions(&mw.LoggerOptions{Logger: logger}))
	}

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr})
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(ctx, cfg.REST.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	cancel()
	wg.Wait()
}

func buildTracker(ctx context.Context, cache *schema.Cache, logger *zap.Logger) (*history.Tracker, error) {
	entities := make([]history.Entity, 0, len(cfg.History.Entities))
	for _, e := range cfg.History.Entities {
		entities = append(entities, history.Entity{
			Name:    e.Name,
			Base:    e.Base,
			PKField: e.PKField,
			History: e.History,
			M2M:     e.M2M,
		})
	}
	registry, err := history.NewRegistry(entities...)
	if err != nil {
		return nil, err
	}

	var sinks history.MultiSink
	for _, sc := range cfg.History.Sinks {
		switch sc.Kind {
		case "log":
			sinks = append(sinks, history.NewLogSink(logger))
		case "postgres":
			table, _ := sc.Options["table"].(string)
			sink := pgsink.New(cache.Pool(), table)
			if err := sink.EnsureTable(ctx); err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		case "nats":
			sink, err := natsink.New(sc.Options)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		default:
			return nil, fmt.Errorf("unknown history sink kind %q", sc.Kind)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, history.NewLogSink(logger))
	}

	return history.NewTracker(registry, sinks, logger), nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" && level != "none" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}
