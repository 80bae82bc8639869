package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"triage-chatbot/internal/config"
	"triage-chatbot/internal/core"
	"triage-chatbot/internal/db"
	httpserver "triage-chatbot/internal/http"
	"triage-chatbot/internal/llm"
	"triage-chatbot/internal/metrics"
	"triage-chatbot/internal/session"
	"triage-chatbot/internal/training"
	"triage-chatbot/pkg/logging"

	_ "github.com/lib/pq"
)

// trainingTable is what the turn pipeline needs from a training store.
type trainingTable interface {
	core.ColumnSource
	core.RowSource
	core.RowAppender
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	table, closeTable, err := openTrainingTable(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open training table", zap.String("store", cfg.TrainingStore), zap.Error(err))
	}
	defer closeTable()

	// Initialize OpenAI LLM client (extraction, and chat/vision unless Gemini is configured)
	openAI := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModelText, cfg.OpenAIModelChat)

	var (
		chats  llm.ChatFactory   = openAI
		vision llm.ImageAnalyzer = openAI
	)
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Fatal("failed to create gemini client", zap.Error(err))
		}
		defer func() { _ = gemini.Close() }()
		vision = gemini
		if cfg.ChatProvider == "gemini" {
			chats = gemini
		}
	} else if cfg.ChatProvider == "gemini" {
		logger.Fatal("CHAT_PROVIDER=gemini requires GEMINI_API_KEY")
	}

	var predictor core.Predictor = &core.NearestPredictor{Rows: table}
	if cfg.PredictorURL != "" {
		predictor = core.NewHTTPPredictor(cfg.PredictorURL)
	}
	classifier, err := core.NewClassifier(ctx, table, predictor)
	if err != nil {
		logger.Fatal("failed to construct classifier", zap.Error(err))
	}

	m := metrics.NewTriageMetrics(prometheus.DefaultRegisterer)
	sessions := session.NewStore(cfg.MaxHistory)
	turns := core.NewTurnService(
		sessions,
		chats,
		vision,
		core.NewExtractor(openAI, logger, m),
		classifier,
		table,
		logger,
		m,
	)

	srv := httpserver.NewServer(sessions, turns, logger, prometheus.DefaultGatherer, cfg.TurnTimeout, cfg.MaxImageBytes)

	addr := ":" + cfg.Port
	logger.Info("listening",
		zap.String("addr", addr),
		zap.String("chat_provider", cfg.ChatProvider),
		zap.String("training_store", cfg.TrainingStore),
		zap.Int("features", classifier.Features()),
	)
	if err := http.ListenAndServe(addr, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// openTrainingTable opens the configured training store.  The returned
// function releases it.
func openTrainingTable(ctx context.Context, cfg *config.Config, logger *zap.Logger) (trainingTable, func(), error) {
	if cfg.TrainingStore != "postgres" {
		table, err := training.OpenXLSX(cfg.TrainingXLSXPath)
		if err != nil {
			return nil, nil, err
		}
		return table, func() {}, nil
	}

	// Open database connection
	dbConn, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(pingCtx); err != nil {
		_ = dbConn.Close()
		return nil, nil, err
	}
	if err := db.Migrate(ctx, dbConn); err != nil {
		_ = dbConn.Close()
		return nil, nil, err
	}
	repo := db.NewRepository(dbConn, db.NewNotifier(dbConn, cfg.NotifyChannel), logger)
	return repo, func() { _ = dbConn.Close() }, nil
}
