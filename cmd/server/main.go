package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/Skufu/GoSymptom/internal/chat"
	"github.com/Skufu/GoSymptom/internal/logging"
	"github.com/Skufu/GoSymptom/internal/model"
	"github.com/Skufu/GoSymptom/internal/predict"
	"github.com/Skufu/GoSymptom/internal/reference"
	"github.com/Skufu/GoSymptom/internal/symptom"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Port        string
	DatabaseURL string
	EnableDB    bool
	LogLevel    string
	LogFormat   string

	DataDir         string
	SymptomsFile    string
	ReferenceSource string

	ArtifactSource string
	ArtifactPath   string
	ArtifactBase64 bool
	ArtifactBucket string
	ArtifactKey    string
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	StrictConsistency bool
	Policy            predict.Policy

	GroqAPIKey  string
	ChatBaseURL string
	Chat        chat.Config
}

func main() {
	gin.SetMode(getEnv("GIN_MODE", "release"))

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	slog.SetDefault(logger)

	ctx := context.Background()
	var db HealthChecker
	var pool *pgxpool.Pool
	if cfg.EnableDB {
		pool, err = connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer pool.Close()
		db = pool
	}

	svc, err := loadServices(ctx, cfg, pool, logger)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	router := setupRouter(db, svc)
	server := newServer(cfg, router)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port, "data_dir", cfg.DataDir, "chat_configured", svc.Chat.Configured())
	waitForShutdown(server)
}

// newServer leaves room in the write timeout for a chat reply that uses the
// whole chat budget, so a failed completion still reaches the caller.
func newServer(cfg *Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Chat.Budget() + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	root := detectProjectRoot()
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		EnableDB:    envBool("ENABLE_DB"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),

		DataDir:         getEnv("DATA_DIR", filepath.Join(root, "data")),
		ReferenceSource: strings.ToLower(getEnv("REFERENCE_SOURCE", "csv")),

		ArtifactSource: strings.ToLower(getEnv("ARTIFACT_SOURCE", "base64")),
		ArtifactPath:   getEnv("ARTIFACT_PATH", filepath.Join(root, "ml_model", "model_base64.txt")),
		ArtifactBase64: envBool("ARTIFACT_BASE64"),
		ArtifactBucket: os.Getenv("ARTIFACT_BUCKET"),
		ArtifactKey:    os.Getenv("ARTIFACT_KEY"),
		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:    envBool("MINIO_USE_SSL"),

		StrictConsistency: envBool("STRICT_CONSISTENCY"),
		Policy: predict.Policy{
			AbstainWhenUnrecognized: envBool("PREDICT_ABSTAIN_UNRECOGNIZED"),
		},

		GroqAPIKey:  os.Getenv("GROQ_API_KEY"),
		ChatBaseURL: getEnv("CHAT_BASE_URL", chat.DefaultBaseURL),
		Chat: chat.Config{
			Model:        getEnv("CHAT_MODEL", chat.DefaultModel),
			SystemPrompt: getEnv("SYSTEM_PROMPT", chat.DefaultSystemPrompt),
		},
	}
	cfg.SymptomsFile = getEnv("SYMPTOMS_FILE", filepath.Join(cfg.DataDir, "symptoms.csv"))

	var err error
	if cfg.Policy.MinConfidence, err = envFloat("PREDICT_MIN_CONFIDENCE", 0); err != nil {
		return nil, err
	}
	temperature, err := envFloat("CHAT_TEMPERATURE", chat.DefaultTemperature)
	if err != nil {
		return nil, err
	}
	cfg.Chat.Temperature = float32(temperature)
	if cfg.Chat.Timeout, err = envDuration("CHAT_TIMEOUT", chat.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.Chat.MaxRetries, err = envInt("CHAT_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.Chat.RateLimit, err = envFloat("CHAT_RATE_LIMIT", 0); err != nil {
		return nil, err
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	switch cfg.ArtifactSource {
	case "file", "base64":
		if cfg.ArtifactPath == "" {
			return nil, fmt.Errorf("ARTIFACT_PATH is required when ARTIFACT_SOURCE=%s", cfg.ArtifactSource)
		}
	case "s3", "minio":
		if cfg.ArtifactBucket == "" || cfg.ArtifactKey == "" {
			return nil, fmt.Errorf("ARTIFACT_BUCKET and ARTIFACT_KEY are required when ARTIFACT_SOURCE=%s", cfg.ArtifactSource)
		}
		if cfg.ArtifactSource == "minio" && cfg.MinIOEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is required when ARTIFACT_SOURCE=minio")
		}
	default:
		return nil, fmt.Errorf("unknown ARTIFACT_SOURCE %q", cfg.ArtifactSource)
	}
	switch cfg.ReferenceSource {
	case "csv":
	case "postgres":
		if !cfg.EnableDB {
			return nil, fmt.Errorf("REFERENCE_SOURCE=postgres requires ENABLE_DB=true")
		}
	default:
		return nil, fmt.Errorf("unknown REFERENCE_SOURCE %q", cfg.ReferenceSource)
	}
	if cfg.Policy.MinConfidence < 0 || cfg.Policy.MinConfidence > 1 {
		return nil, fmt.Errorf("PREDICT_MIN_CONFIDENCE must be within [0,1], got %v", cfg.Policy.MinConfidence)
	}
	if cfg.Chat.Timeout <= 0 {
		return nil, fmt.Errorf("CHAT_TIMEOUT must be positive")
	}
	if cfg.Chat.MaxRetries < 0 {
		return nil, fmt.Errorf("CHAT_MAX_RETRIES must not be negative")
	}

	return cfg, nil
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func artifactSource(ctx context.Context, cfg *Config) (model.ArtifactSource, error) {
	var src model.ArtifactSource
	switch cfg.ArtifactSource {
	case "file":
		return model.FileSource{Path: cfg.ArtifactPath}, nil
	case "base64":
		return model.NewBase64File(cfg.ArtifactPath), nil
	case "s3":
		s3src, err := model.NewS3Source(ctx, cfg.ArtifactBucket, cfg.ArtifactKey)
		if err != nil {
			return nil, err
		}
		src = s3src
	case "minio":
		minioSrc, err := model.NewMinIOSource(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL, cfg.ArtifactBucket, cfg.ArtifactKey)
		if err != nil {
			return nil, err
		}
		src = minioSrc
	default:
		return nil, fmt.Errorf("unknown artifact source %q", cfg.ArtifactSource)
	}
	if cfg.ArtifactBase64 {
		src = model.Base64Source{Inner: src}
	}
	return src, nil
}

// loadServices builds everything the handlers share. Any failure here is
// fatal for the process.
func loadServices(ctx context.Context, cfg *Config, pool *pgxpool.Pool, logger *slog.Logger) (*services, error) {
	src, err := artifactSource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("artifact source: %w", err)
	}
	loadCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	artifact, err := model.Load(loadCtx, src)
	if err != nil {
		return nil, err
	}
	logger.Info("model artifact loaded",
		"source", src.String(),
		"vocabulary", artifact.Vocabulary.Len(),
		"features", artifact.Selector.OutputDim(),
		"labels", artifact.Labels.Len(),
	)

	var tables *reference.Tables
	switch cfg.ReferenceSource {
	case "postgres":
		tables, err = reference.LoadPostgres(loadCtx, pool)
	default:
		tables, err = reference.LoadCSV(loadCtx, cfg.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("load reference tables: %w", err)
	}
	logger.Info("reference tables loaded", "source", cfg.ReferenceSource, "diseases", tables.Len())

	issues := reference.CheckConsistency(artifact.Labels.Labels(), tables)
	for _, issue := range issues {
		logger.Warn("reference data inconsistent", "disease", issue.Disease, "missing", issue.Missing)
	}
	if len(issues) > 0 && cfg.StrictConsistency {
		return nil, fmt.Errorf("%d model labels lack reference data", len(issues))
	}

	options, err := symptomOptions(cfg.SymptomsFile, artifact.Vocabulary)
	if err != nil {
		return nil, err
	}

	var completer chat.Completer
	if cfg.GroqAPIKey != "" {
		completer = chat.NewOpenAICompatible(cfg.GroqAPIKey, cfg.ChatBaseURL)
	} else {
		logger.Warn("GROQ_API_KEY not set, chat replies will report the service as unavailable")
	}

	return &services{
		Predictor: predict.New(predict.Context{Artifact: artifact, Tables: tables}, cfg.Policy, logger),
		Chat:      chat.New(completer, cfg.Chat, logger),
		Symptoms:  options,
		Logger:    logger,
	}, nil
}

// symptomOptions prefers the curated list file and falls back to the model
// vocabulary when it does not exist.
func symptomOptions(path string, vocab *symptom.Vocabulary) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return vocab.Names(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names, err := symptom.ReadList(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	unknown := 0
	for _, n := range names {
		if !vocab.Contains(n) {
			unknown++
		}
	}
	if unknown > 0 {
		slog.Warn("symptom list has names the model does not know", "file", path, "count", unknown)
	}
	return names, nil
}

func waitForShutdown(server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envBool(key string) bool {
	return strings.EqualFold(getEnv(key, "false"), "true")
}

func envFloat(key string, fallback float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// detectProjectRoot finds the directory holding data/description.csv, looking
// at the working directory and up to two parents.
func detectProjectRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "."
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "data", reference.DescriptionFile)) {
			return dir
		}
	}

	return startDir
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
