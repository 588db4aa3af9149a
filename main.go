package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"devmate/internal/classifier"
	"devmate/internal/composer"
	"devmate/internal/config"
	"devmate/internal/domain"
	"devmate/internal/embedding"
	"devmate/internal/llm"
	"devmate/internal/nl2sql"
	"devmate/internal/recommend"
	"devmate/internal/retriever"
	"devmate/internal/service"
	"devmate/internal/store"
	"devmate/internal/tools"
	handler "devmate/internal/transport/http"
	"devmate/internal/vectorindex"
)

func main() {
	// Load configuration
	cfg := config.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	// Go 1.21: no slog.SetLogLoggerLevel; install a leveled default logger instead.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	log.Printf("Starting devmate...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("LLM URL: %s (model %s)", cfg.LLMBaseURL, cfg.LLMModel)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Declared NL2SQL schema: from file when configured, compiled-in default otherwise
	schema := config.DefaultSchema()
	if cfg.SchemaPath != "" {
		schema, err = config.LoadSchema(cfg.SchemaPath)
		if err != nil {
			log.Fatalf("Failed to load schema declaration: %v", err)
		}
	}

	// Initialize LLM client and embedding engine
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)
	embedEngine := embedding.NewEngine(cfg.EmbedBaseURL, cfg.EmbedAPIKey, cfg.EmbedModel, cfg.LLMTimeout)
	log.Printf("Embedding engine: %s", embedEngine.Name())

	// Initialize vector index
	index, err := vectorindex.NewPersistent(cfg.VectorDir, embedding.Func(embedEngine))
	if err != nil {
		log.Fatalf("Failed to initialize vector index: %v", err)
	}

	ctx := context.Background()

	// Index learning resources so the retriever can see them
	if err := indexLearnings(ctx, db, index); err != nil {
		log.Printf("WARN: failed to index learning resources: %v", err)
	}

	// Initialize SQL guard
	guard, err := nl2sql.NewGuard(ctx, schema)
	if err != nil {
		log.Fatalf("Failed to initialize SQL guard: %v", err)
	}

	// Initialize service
	svc := service.New(service.Options{
		Store:         db,
		Classifier:    classifier.New(llmClient, cfg.LLMModel, cfg.HistoryWindow),
		Translator:    nl2sql.NewTranslator(llmClient, cfg.LLMModel, guard, db, schema, cfg.SQLRowLimit, cfg.SQLTimeout),
		Retriever:     retriever.New(index, cfg.RetrievalTopK, cfg.RetrievalBudget),
		Dispatcher:    tools.NewDispatcher(db, llmClient, cfg.LLMModel),
		Composer:      composer.New(llmClient, cfg.LLMModel, cfg.HistoryWindow),
		Recommender:   recommend.New(db, llmClient, cfg.LLMModel),
		Client:        llmClient,
		Model:         cfg.LLMModel,
		HistoryWindow: cfg.HistoryWindow,
		TurnTimeout:   cfg.TurnTimeout,
	})

	// Initialize handler
	h := handler.NewHandler(svc)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down devmate...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Devmate stopped")
}

// indexLearnings mirrors the learnings table into the learning chunk
// collection. Documents are ingested out of band into the same persistent
// index directory.
func indexLearnings(ctx context.Context, db *store.SQLiteStore, index *vectorindex.Index) error {
	learnings, err := db.SearchLearnings(ctx, "")
	if err != nil {
		return err
	}
	for _, l := range learnings {
		chunk := vectorindex.Chunk{
			ID:        l.ID,
			Source:    domain.SourceLearning,
			Text:      l.Title + "\n" + l.Summary,
			Title:     l.Title,
			UpdatedAt: time.Now(),
		}
		if err := index.Upsert(ctx, chunk); err != nil {
			return err
		}
	}
	if len(learnings) > 0 {
		log.Printf("Indexed %d learning resources", len(learnings))
	}
	return nil
}
