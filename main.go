package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gigapi/draftpipe/cache"
	"github.com/gigapi/draftpipe/config"
	"github.com/gigapi/draftpipe/engine"
	handlers "github.com/gigapi/draftpipe/handler"
	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/router"
	"github.com/gigapi/draftpipe/service"
	"github.com/gigapi/draftpipe/service/db"
	"github.com/gigapi/draftpipe/source"
	"github.com/gigapi/draftpipe/stdin"
	"github.com/gigapi/draftpipe/utils/logger"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

// initFlags initializes the command line flags
func initFlags() *model.CommandLineFlags {
	appFlags := &model.CommandLineFlags{}
	appFlags.Config = flag.String("config", "", "Configuration file (yaml, json or toml)")
	appFlags.Host = flag.String("host", "", "API host, overrides http.host")
	appFlags.Port = flag.String("port", "", "API port, overrides http.port")
	appFlags.Format = flag.String("format", "JSONCompact", "Output format: JSONCompact, TSVWithNames or CSVWithNames")
	appFlags.Stdin = flag.Bool("stdin", false, "Read one JSON request with a dataset field from stdin and exit")
	appFlags.Clean = flag.String("clean", "", "Clear the cache of a dataset and exit")
	appFlags.Verbose = flag.Bool("verbose", false, "Enable verbose (debug) logging")
	flag.Parse()
	return appFlags
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	appFlags := initFlags()

	cfg, err := config.InitConfig(*appFlags.Config)
	if err != nil {
		return err
	}
	log := logger.New(*appFlags.Verbose || cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newCache(cfg, log)
	if err != nil {
		return err
	}
	extensions, err := config.LoadExtensions(cfg.Extensions)
	if err != nil {
		return err
	}
	conn, err := db.ConnectDuckDB("", db.Options{Threads: cfg.DuckDB.Threads, MemoryLimit: cfg.DuckDB.MemoryLimit})
	if err != nil {
		return fmt.Errorf("failed to connect to DuckDB: %w", err)
	}
	defer conn.Close()

	src := source.NewFileSource(conn, cfg.External, cfg.EventType, log)
	eng := engine.New(conn, src, log, cfg.Engine.Parallelism)
	svc := service.NewMetricsService(conn, src, eng, c, extensions, log)

	if *appFlags.Clean != "" {
		n, err := svc.ClearCache(ctx, *appFlags.Clean)
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d cache entries of %s\n", n, *appFlags.Clean)
		return nil
	}

	if *appFlags.Stdin {
		return stdin.Process(ctx, os.Stdin, os.Stdout, svc, *appFlags.Format)
	}

	host, port := cfg.HTTP.Host, cfg.HTTP.Port
	if *appFlags.Host != "" {
		host = *appFlags.Host
	}
	if *appFlags.Port != "" {
		port = *appFlags.Port
	}
	h := &handlers.Handler{Service: svc, DefaultFormat: *appFlags.Format}
	srv := &http.Server{
		Addr:              host + ":" + port,
		Handler:           router.NewRouter(log, router.APIRoutes(h)...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Info("draftpipe API running", "addr", srv.Addr, "external", cfg.External, "cache", cfg.Cache.Root)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newCache returns the local parquet cache, mirrored to S3 when configured.
func newCache(cfg *config.Configuration, log *slog.Logger) (*cache.Cache, error) {
	store := cache.NewFSStore(cfg.Cache.Root, log)
	if cfg.Cache.S3.Enabled {
		s3 := cfg.Cache.S3
		remote, err := cache.NewS3Store(cache.S3Options{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Secure:    s3.Secure,
		}, log)
		if err != nil {
			return nil, err
		}
		store = cache.NewTieredStore(store, remote, log)
	}
	return cache.New(store, log), nil
}
