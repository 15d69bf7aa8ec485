// Command api is the ingestion control-plane: it accepts uploaded-file and
// video-link processing requests, runs the ingestion jobs, serves the
// bot-mode toggle, and consumes ingestion work published on NATS.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CoachingAI/coaching-mvp/engine/botmode"
	"github.com/CoachingAI/coaching-mvp/engine/catalog"
	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/engine/extract"
	"github.com/CoachingAI/coaching-mvp/engine/ingest"
	"github.com/CoachingAI/coaching-mvp/engine/semantic"
	"github.com/CoachingAI/coaching-mvp/pkg/metrics"
	"github.com/CoachingAI/coaching-mvp/pkg/mid"
	"github.com/CoachingAI/coaching-mvp/pkg/objstore"
	"github.com/CoachingAI/coaching-mvp/pkg/openai"
)

// text-embedding-3-large
const vectorDims = 3072

var met = metrics.New()

var (
	mJobsTotal = func(kind string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("coach_ingest_jobs_total", "kind", kind), "Ingestion jobs submitted")
	}
	mJobsFailed  = met.Counter("coach_ingest_jobs_failed_total", "Ingestion jobs that ended failed")
	mReembeds    = met.Counter("coach_ingest_reembed_total", "Passage re-embedding jobs submitted")
	mModeToggles = met.Counter("coach_botmode_toggles_total", "Bot mode updates accepted")
	mJobDur      = met.Histogram("coach_ingest_job_duration_seconds", "Submit-to-callback job time", nil)
)

// Config holds all environment-based configuration.
type Config struct {
	Port           string
	OpenAIKey      string
	OpenAIBase     string
	EmbedModel     string
	QdrantURL      string
	Collection     string
	Neo4jURL       string
	Neo4jUser      string
	Neo4jPass      string
	NATSURL        string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSSL       bool
	CORSOrigin     string
}

func loadConfig() Config {
	return Config{
		Port:           envOr("PORT", "8080"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBase:     envOr("OPENAI_BASE_URL", ""),
		EmbedModel:     envOr("EMBED_MODEL", openai.DefaultEmbedModel),
		QdrantURL:      envOr("QDRANT_URL", "localhost:6334"),
		Collection:     envOr("QDRANT_COLLECTION", "coach"),
		Neo4jURL:       envOr("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:      envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:      envOr("NEO4J_PASS", "password"),
		NATSURL:        envOr("NATS_URL", nats.DefaultURL),
		MinioEndpoint:  envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: envOr("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: envOr("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    envOr("MINIO_BUCKET", "coach-uploads"),
		MinioSSL:       os.Getenv("MINIO_SSL") == "true",
		CORSOrigin:     envOr("CORS_ORIGIN", "*"),
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

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
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
	cat := catalog.New(neo4jDriver)

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, vectorDims); err != nil {
		return fmt.Errorf("qdrant collection: %w", err)
	}

	// --- Connect to object storage ---
	uploads, err := objstore.New(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioSSL)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	// --- Bot mode flag (shared with the bot process) ---
	mode, err := botmode.New(ctx, cat, nc, logger)
	if err != nil {
		return fmt.Errorf("bot mode: %w", err)
	}
	defer mode.Close()

	// --- Ingestion runner ---
	embedder := openai.NewEmbedClient(cfg.OpenAIBase, cfg.OpenAIKey, cfg.EmbedModel)
	runner := ingest.NewRunner(ingest.Deps{
		Downloader: uploads,
		Extractors: extract.NewRegistry(extract.NewTranscriptClient(nil)),
		Embedder:   embedder,
		Passages:   vectorStore,
		Status:     cat,
		Logger:     logger,
		Opts:       ingest.DefaultOptions(),
	}, vectorStore)

	subs, err := ingest.StartConsumer(nc, runner, logger)
	if err != nil {
		return fmt.Errorf("ingest consumer: %w", err)
	}
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/process-file", handleProcessFile(cat, runner, logger))
	mux.HandleFunc("POST /api/process-video-link", handleProcessLink(cat, runner, logger))
	mux.HandleFunc("POST /api/update-embedding", handleUpdateEmbedding(runner, logger))
	mux.HandleFunc("POST /api/update-bot-settings", handleUpdateBotSettings(mode, logger))
	mux.Handle("GET /metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("coach-api"),
		mid.CORS(cfg.CORSOrigin),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runner.Wait()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ProcessFileRequest is the JSON body for POST /api/process-file.
type ProcessFileRequest struct {
	FileID          string `json:"file_id"`
	FileName        string `json:"file_name"`
	FilePath        string `json:"file_path"`
	FileStoragePath string `json:"file_storage_path"`
	FileType        string `json:"file_type"`
	UserID          string `json:"user_id"`
}

func handleProcessFile(cat *catalog.Neo4jCatalog, runner *ingest.Runner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProcessFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		src := domain.SourceObject{
			ID:          req.FileID,
			UserID:      req.UserID,
			Kind:        domain.SourceKind(req.FileType),
			Location:    req.FilePath,
			StoragePath: req.FileStoragePath,
			Name:        req.FileName,
		}
		submitSource(r.Context(), w, cat, runner, src, logger)
	}
}

// ProcessLinkRequest is the JSON body for POST /api/process-video-link.
type ProcessLinkRequest struct {
	VideoLinkID string `json:"video_link_id"`
	VideoURL    string `json:"video_url"`
	UserID      string `json:"user_id"`
}

func handleProcessLink(cat *catalog.Neo4jCatalog, runner *ingest.Runner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProcessLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		src := domain.SourceObject{
			ID:       req.VideoLinkID,
			UserID:   req.UserID,
			Kind:     domain.KindVideoLink,
			Location: req.VideoURL,
			Name:     req.VideoURL,
		}
		submitSource(r.Context(), w, cat, runner, src, logger)
	}
}

// submitSource validates, registers as pending, and fires the job. The
// response is sent immediately; the terminal status lands via the runner.
func submitSource(ctx context.Context, w http.ResponseWriter, cat *catalog.Neo4jCatalog, runner *ingest.Runner, src domain.SourceObject, logger *slog.Logger) {
	if err := domain.ValidateSource(src); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	if err := cat.RegisterSource(ctx, src); err != nil {
		logger.Error("register source failed", "source_id", src.ID, "err", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	mJobsTotal(string(src.Kind)).Inc()
	started := time.Now()
	runner.Submit(src, func(sourceID string, kind domain.SourceKind, err error) {
		mJobDur.Observe(time.Since(started).Seconds())
		if err != nil {
			mJobsFailed.Inc()
			logger.Error("ingest job failed", "source_id", sourceID, "kind", kind, "err", err)
			return
		}
		logger.Info("ingest job done", "source_id", sourceID, "kind", kind)
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": string(domain.StatusPending), "id": src.ID})
}

// UpdateEmbeddingRequest is the JSON body for POST /api/update-embedding.
type UpdateEmbeddingRequest struct {
	DocumentID string `json:"document_id"`
}

func handleUpdateEmbedding(runner *ingest.Runner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID == "" {
			http.Error(w, `{"error":"document_id is required"}`, http.StatusBadRequest)
			return
		}

		mReembeds.Inc()
		runner.SubmitReembed(req.DocumentID, func(passageID string, err error) {
			if err != nil {
				logger.Error("re-embed job failed", "passage_id", passageID, "err", err)
			}
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "id": req.DocumentID})
	}
}

// UpdateBotSettingsRequest is the JSON body for POST /api/update-bot-settings.
type UpdateBotSettingsRequest struct {
	IsBot *bool `json:"is_bot"`
}

func handleUpdateBotSettings(mode *botmode.Flag, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateBotSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsBot == nil {
			http.Error(w, `{"error":"is_bot is required"}`, http.StatusBadRequest)
			return
		}
		if err := mode.Set(r.Context(), *req.IsBot); err != nil {
			logger.Error("bot mode update failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		mModeToggles.Inc()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"is_bot": *req.IsBot})
	}
}
