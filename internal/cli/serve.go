package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	gopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/sujitmandava/chronicle/internal/api/handlers"
	"github.com/sujitmandava/chronicle/internal/chunker"
	"github.com/sujitmandava/chronicle/internal/config"
	"github.com/sujitmandava/chronicle/internal/database"
	"github.com/sujitmandava/chronicle/internal/domain"
	"github.com/sujitmandava/chronicle/internal/openai"
	"github.com/sujitmandava/chronicle/internal/repository"
	"github.com/sujitmandava/chronicle/internal/server"
	"github.com/sujitmandava/chronicle/internal/service"
	"github.com/sujitmandava/chronicle/internal/storage"
	"github.com/sujitmandava/chronicle/internal/telemetry"
	"github.com/sujitmandava/chronicle/migrations"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the chronicle API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	db, err := database.Open(ctx, database.Config{Path: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	log.Printf("opened database at %s", cfg.DBPath)

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(db); err != nil {
			telemetry.CaptureError(ctx, err)
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(db)
	fragmentRepo := repository.NewFragmentRepository(db)
	txRunner := repository.NewTxRunner(db)

	chunkCfg := chunker.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}

	var archiver handlers.DocumentArchiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready for document archival", cfg.S3Bucket)
		archiver = s3Client
	}

	var ingestSvc handlers.IngestService
	var retriever service.Retriever
	var promptSvc handlers.PromptService

	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			EmbeddingModel: gopenai.EmbeddingModel(cfg.EmbeddingModel),
			ChatModel:      cfg.ChatModel,
		})
		ingestSvc = service.NewIndexService(client, documentRepo, fragmentRepo, txRunner, chunkCfg)
		retriever = service.NewStalenessAwareRetriever(client, fragmentRepo, cfg.HalfLifeDays)
		promptSvc = service.NewPromptService(retriever, client, cfg.MaxAgeDays, cfg.WarningAgeDays)
	} else {
		log.Println("no OpenAI API key configured; ingest and prompt endpoints disabled")
		ingestSvc = &noOpIngestService{}
		retriever = service.NoOpRetriever{}
		promptSvc = &noOpPromptService{}
	}

	ingestHandler := handlers.NewIngestHandler(ingestSvc)
	retrieveHandler := handlers.NewRetrieveHandler(retriever)
	promptHandler := handlers.NewPromptHandler(promptSvc)
	var uploadHandler *handlers.UploadHandler
	if archiver != nil {
		uploadHandler = handlers.NewUploadHandlerWithArchive(ingestSvc, archiver)
	} else {
		uploadHandler = handlers.NewUploadHandler(ingestSvc)
	}

	router := server.NewRouter(server.RouterConfig{
		IngestHandler:   ingestHandler,
		RetrieveHandler: retrieveHandler,
		PromptHandler:   promptHandler,
		UploadHandler:   uploadHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to load migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else {
		log.Printf("migrations: database at version %d", version)
	}

	return nil
}

type noOpIngestService struct{}

func (s *noOpIngestService) Ingest(ctx context.Context, docID, text, source string) (*domain.IngestStats, error) {
	return nil, domain.NewUpstreamError("embedding provider not configured: CHRONICLE_OPENAI_API_KEY required", nil)
}

type noOpPromptService struct{}

func (s *noOpPromptService) Answer(ctx context.Context, prompt string) (*service.PromptResult, error) {
	return nil, domain.NewUpstreamError("chat model not configured: CHRONICLE_OPENAI_API_KEY required", nil)
}
