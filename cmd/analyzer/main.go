package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortresslogs/ctfround/internal/analysis"
	"github.com/fortresslogs/ctfround/internal/config"
	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/fortresslogs/ctfround/internal/report"
	"github.com/fortresslogs/ctfround/internal/repository"
	"github.com/fortresslogs/ctfround/internal/server"
	"github.com/fortresslogs/ctfround/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const recentReportLimit = 100

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	serve      = flag.Bool("serve", false, "keep running and serve reports over websocket and gRPC")
	printJSON  = flag.Bool("json", false, "print each report as JSON on stdout")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] round.jsonl...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 && !*serve {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting CTF round analyzer",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.Int("logs", flag.NArg()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing, version, logger)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	analyzer := analysis.New(cfg.TrackerOptions(), logger)
	bus := analyzer.Bus()

	var store server.ReportStore
	if cfg.Archive.Enabled {
		archive := report.NewArchive(logger, cfg.Archive.Directory)
		bus.Subscribe("archive", func(_ context.Context, r *report.Report) error {
			return archive.Save(r)
		})
		store = archive
		logger.Info("report archive enabled", zap.String("directory", cfg.Archive.Directory))
	}

	if cfg.Database.Enabled {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := repository.Migrate(ctx, db); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		repo := repository.NewReportRepository(db, logger)
		bus.Subscribe("database", repo.Save)
	}

	if *printJSON {
		bus.Subscribe("stdout", func(_ context.Context, r *report.Report) error {
			data, err := r.MarshalProtoJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, string(data))
			return err
		})
	}

	var shutdown func()
	if *serve {
		if store == nil {
			recent := server.NewRecentReports(recentReportLimit)
			bus.Subscribe("recent", recent.Publish)
			store = recent
		}
		shutdown, err = startServers(ctx, cfg.Server, store, bus, logger)
		if err != nil {
			logger.Fatal("failed to start servers", zap.Error(err))
		}
	}

	failed := 0
	for _, path := range flag.Args() {
		r, err := analyzer.AnalyzeFile(ctx, path)
		if err != nil {
			failed++
			logger.Error("failed to analyze round log", zap.String("file", path), zap.Error(err))
			if r == nil {
				continue
			}
		}
		logScores(logger, path, r)
	}

	if *serve {
		logger.Info("analyzer serving reports",
			zap.String("grpc_address", cfg.Server.GRPC.Address),
			zap.String("websocket_address", cfg.Server.WebSocket.Address),
		)
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		shutdown()
	}

	logger.Info("analyzer stopped", zap.Int("analyzed", flag.NArg()-failed), zap.Int("failed", failed))
	if failed > 0 {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
		logger.Sync()
		os.Exit(1)
	}
}

// startServers starts the gRPC and websocket servers and returns a function that
// stops both.
func startServers(ctx context.Context, cfg config.ServerConfig, store server.ReportStore, bus *analysis.Bus, logger *zap.Logger) (func(), error) {
	grpcServer, healthSrv := server.NewGRPCServer(store, logger)
	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Address, err)
	}
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	hub := server.NewHub(cfg.WebSocket.AllowedOrigins, logger)
	go hub.Run(ctx)
	bus.Subscribe("feed", hub.Publish)

	mux := http.NewServeMux()
	mux.Handle(cfg.WebSocket.Path, hub)
	httpServer := &http.Server{
		Addr:              cfg.WebSocket.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.WebSocket.Address),
			zap.String("path", cfg.WebSocket.Path),
		)
		if wsErr := httpServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	return func() {
		logger.Info("shutting down gracefully...")
		healthSrv.SetServingStatus(server.ReportServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("WebSocket server shutdown", zap.Error(err))
		}
		grpcServer.GracefulStop()
	}, nil
}

func logScores(logger *zap.Logger, path string, r *report.Report) {
	fields := []zap.Field{
		zap.String("file", path),
		zap.String("map", r.MapName),
		zap.Stringer("winner", r.Winner()),
	}
	for _, team := range ctf.AllTeams {
		if score := r.Scores.Get(team); score != 0 || len(r.Movements[team]) > 0 {
			fields = append(fields, zap.Int(team.String(), score))
		}
	}
	logger.Info("round result", fields...)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
