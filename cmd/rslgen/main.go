// Command rslgen runs the inspection-to-RSL batch pipeline: it reads the
// inspection CSV, generates a rule, description, verified documentation
// URLs, and a verdict per row, and writes the augmented table back out.
//
// Optional surfaces: a read-only stats/report HTTP API (HTTP_ADDR) and the
// MCP toolset over stdio (MCP_TRANSPORT=stdio).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/metabug/rslgen/csvio"
	"github.com/metabug/rslgen/dbopen"
	"github.com/metabug/rslgen/genai"
	"github.com/metabug/rslgen/rulegen"
)

func main() {
	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// Logs go to stderr so stdio MCP keeps stdout to itself.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Config: YAML file when given, env overrides on top.
	var cfg *rulegen.Config
	if path := os.Getenv("CONFIG"); path != "" {
		loaded, err := rulegen.LoadConfig(path)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = &rulegen.Config{}
	}
	if v := os.Getenv("INPUT_CSV"); v != "" {
		cfg.InputPath = v
	}
	if v := os.Getenv("OUTPUT_CSV"); v != "" {
		cfg.OutputPath = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("REPORT_DIR"); v != "" {
		cfg.ReportDir = v
	}
	if v := os.Getenv("SNAPSHOT_DIR"); v != "" {
		cfg.SnapshotDir = v
	}

	apiKey := os.Getenv("GENAI_API_KEY")
	if apiKey == "" {
		slog.Error("GENAI_API_KEY is required")
		os.Exit(1)
	}
	client := genai.NewClient(genai.Config{
		BaseURL: env("GENAI_BASE_URL", "https://api.openai.com"),
		APIKey:  apiKey,
		Model:   env("GENAI_MODEL", "gpt-5"),
		Logger:  logger,
	})

	opts := []rulegen.ServiceOption{
		rulegen.WithSearcher(client),
		rulegen.WithVerifier(client),
	}

	if cfg.DBPath != "" {
		db, err := dbopen.Open(cfg.DBPath,
			dbopen.WithMkdirAll(),
			dbopen.WithSchema(rulegen.RunLogSchema))
		if err != nil {
			slog.Error("open run log", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		opts = append(opts, rulegen.WithRunLogDB(db))
	}

	svc, err := rulegen.NewService(cfg, client, logger, opts...)
	if err != nil {
		slog.Error("rulegen service", "error", err)
		os.Exit(1)
	}

	// Optional report API.
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: svc.Router()}
		go func() {
			slog.Info("http api starting", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http api", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	// MCP stdio serves the toolset instead of running a batch.
	if env("MCP_TRANSPORT", "") == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "rslgen",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		slog.Info("mcp stdio starting")
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("mcp stdio", "error", err)
			os.Exit(1)
		}
		return
	}

	if cfg.InputPath == "" {
		slog.Error("INPUT_CSV is required for a batch run")
		os.Exit(1)
	}

	in, err := csvio.Read(cfg.InputPath)
	if err != nil {
		slog.Error("read input", "path", cfg.InputPath, "error", err)
		os.Exit(1)
	}
	batch, err := rulegen.NewBatch(svc, in)
	if err != nil {
		slog.Error("prepare batch", "error", err)
		os.Exit(1)
	}

	if err := runBatch(ctx, batch); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("batch interrupted", "processed", batch.Processed())
			os.Exit(130)
		}
		os.Exit(1)
	}
	slog.Info("batch complete", "processed", batch.Processed())
}

// runBatch shields the process from anything the batch loop did not catch
// itself; the emergency checkpoint preserves whatever was produced.
func runBatch(ctx context.Context, batch *rulegen.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("batch panicked", "panic", r)
			if saveErr := batch.SaveAs("_emergency"); saveErr != nil {
				slog.Error("emergency save failed", "error", saveErr)
			}
			err = errors.New("batch panicked")
		}
	}()

	if err := batch.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		slog.Error("batch failed", "error", err)
		if saveErr := batch.SaveAs("_error"); saveErr != nil {
			slog.Error("error save failed", "error", saveErr)
		}
		return err
	}
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
