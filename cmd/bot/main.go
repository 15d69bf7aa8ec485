// Command bot runs the Telegram front-end: questions are answered through
// retrieval over the ingested corpus, and the coach's admin commands
// (flag, transcript, takeover) operate on the shared conversation record.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CoachingAI/coaching-mvp/engine/botmode"
	"github.com/CoachingAI/coaching-mvp/engine/catalog"
	"github.com/CoachingAI/coaching-mvp/engine/history"
	"github.com/CoachingAI/coaching-mvp/engine/rag"
	"github.com/CoachingAI/coaching-mvp/engine/semantic"
	"github.com/CoachingAI/coaching-mvp/pkg/openai"
	"github.com/CoachingAI/coaching-mvp/pkg/telegram"
)

// Config holds all environment-based configuration.
type Config struct {
	TelegramToken string
	CoachHandle   string
	OpenAIKey     string
	OpenAIBase    string
	EmbedModel    string
	ChatModel     string
	QdrantURL     string
	Collection    string
	Neo4jURL      string
	Neo4jUser     string
	Neo4jPass     string
	NATSURL       string
}

func loadConfig() Config {
	return Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		CoachHandle:   envOr("COACH_HANDLE", "@coach"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:    envOr("OPENAI_BASE_URL", ""),
		EmbedModel:    envOr("EMBED_MODEL", openai.DefaultEmbedModel),
		ChatModel:     envOr("CHAT_MODEL", openai.DefaultChatModel),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "coach"),
		Neo4jURL:      envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:     envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:     envOr("NEO4J_PASS", "password"),
		NATSURL:       envOr("NATS_URL", nats.DefaultURL),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_TOKEN is required")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Error("bot exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to Neo4j ---
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j driver: %w", err)
	}
	defer neo4jDriver.Close(ctx)

	turns := history.NewNeo4jStore(neo4jDriver)
	flagger := history.NewFlagger(neo4jDriver)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Connect to NATS for the shared bot-mode flag ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	mode, err := botmode.New(ctx, catalog.New(neo4jDriver), nc, logger)
	if err != nil {
		return fmt.Errorf("bot mode: %w", err)
	}
	defer mode.Close()

	// --- Build the chat flow ---
	embedder := openai.NewEmbedClient(cfg.OpenAIBase, cfg.OpenAIKey, cfg.EmbedModel)
	completer := openai.NewChatClient(cfg.OpenAIBase, cfg.OpenAIKey, cfg.ChatModel)
	retriever := rag.NewRetriever(embedder, vectorStore, rag.DefaultTopK)
	chat := rag.NewService(retriever, turns, completer, logger)

	bot, err := telegram.New(cfg.TelegramToken, telegram.Config{
		CoachHandle: cfg.CoachHandle,
		Answerer:    chat,
		Mode:        mode,
		Flagger:     flagger,
		Turns:       turns,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return bot.Run(ctx)
}
