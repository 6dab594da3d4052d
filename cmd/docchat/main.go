// Docchat answers natural-language questions about one document over a
// streaming HTTP API.
//
// At startup the document is chunked and embedded into an in-memory
// similarity index. POST /chat retrieves the most relevant passages and
// streams a generated answer back as server-sent events, rate limited
// per client.
//
// Configuration comes from an optional YAML file plus environment
// variables (see pkg/config). The OpenAI API key is read from
// OPENAI_API_KEY; a .env file in the working directory is honored.
//
// Usage:
//
//	docchat [-config config.yaml] [-dev]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/perbu/docchat/pkg/chat"
	"github.com/perbu/docchat/pkg/config"
	"github.com/perbu/docchat/pkg/embedder"
	"github.com/perbu/docchat/pkg/generator"
	"github.com/perbu/docchat/pkg/index"
	"github.com/perbu/docchat/pkg/loader"
	"github.com/perbu/docchat/pkg/ratelimit"
	"github.com/perbu/docchat/pkg/server"
)

func main() {
	// Load .env file if it exists (for API key)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to YAML config file")
	dev := flag.Bool("dev", false, "console logging for local development")
	flag.Parse()

	logger, err := newLogger(*dev)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down gracefully",
			zap.String("signal", sig.String()))
		cancel()
	}()

	if err := run(ctx, *configPath, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server shutdown complete")
}

// run initializes all dependencies, starts the HTTP server and blocks
// until the context is cancelled or the server fails.
func run(ctx context.Context, configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if os.Getenv("OPENAI_API_KEY") == "" {
		return errors.New("OPENAI_API_KEY environment variable not set (set it in .env or the environment)")
	}

	// Ingest the document and build the similarity index. The index is
	// rebuilt from scratch on every start; nothing survives a restart.
	passages, err := loader.Load(cfg.Document.Path, cfg.Document.MaxChunkLen)
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}

	emb, err := embedder.NewOpenAIEmbedder(cfg.OpenAI.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("initializing embedder: %w", err)
	}

	logger.Info("building similarity index",
		zap.String("document", cfg.Document.Path),
		zap.Int("passages", len(passages)),
		zap.String("model", emb.ModelInfo()),
	)

	ix, err := index.Build(ctx, passages, emb)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	gen, err := generator.NewOpenAIGenerator(cfg.OpenAI.ChatModel)
	if err != nil {
		return fmt.Errorf("initializing generator: %w", err)
	}

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	defer limiter.Close()

	coordinator, err := chat.NewCoordinator(limiter, ix, gen, cfg.Chat.TopK, logger)
	if err != nil {
		return fmt.Errorf("initializing coordinator: %w", err)
	}

	srv, err := server.NewServer(coordinator, logger, &server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		AllowOrigins: cfg.Server.AllowOrigins,
	})
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	}
}

// newLogger builds the process logger. JSON in production, console with
// the -dev flag.
func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
