package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/director/internal/api"
	"github.com/bobarin/director/internal/config"
	"github.com/bobarin/director/internal/db"
	"github.com/bobarin/director/internal/director"
	"github.com/bobarin/director/internal/production"
	"github.com/bobarin/director/internal/queue"
	"github.com/bobarin/director/internal/services"
	"github.com/bobarin/director/internal/storage"
	"github.com/bobarin/director/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Println("Starting Director API...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store: Postgres when configured, memory otherwise
	var (
		store    production.Store = production.NewMemoryStore()
		jobs     worker.JobTracker
		jobsList api.JobLister
	)
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		store, jobs, jobsList = database, database, database
		log.Println("Connected to database")
	} else {
		log.Println("No DATABASE_URL set, productions are kept in memory")
	}

	// Model clients
	imageSvc, err := services.NewGeminiService(ctx, cfg.ImageKey)
	if err != nil {
		log.Fatalf("Failed to create image client: %v", err)
	}
	var textSvc services.StructuredGenerator
	switch cfg.ModelProvider {
	case config.ProviderOpenAI:
		textSvc = services.NewOpenAIService(cfg.OpenAIKey)
	default:
		textSvc, err = services.NewGeminiService(ctx, cfg.GeminiKey)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
	}
	log.Printf("Model provider: %s (script: %s, seo: %s, image: %s)", cfg.ModelProvider, cfg.ScriptModel, cfg.SeoModel, cfg.ImageModel)

	dir := director.New(textSvc, imageSvc, director.Config{
		ScriptModel: cfg.ScriptModel,
		SeoModel:    cfg.SeoModel,
		ImageModel:  cfg.ImageModel,
		AspectRatio: cfg.AspectRatio,
		Retry:       cfg.RetryPolicy(),
	})

	controller := production.NewController(store, dir, dir, dir,
		production.WithDefaultLanguage(cfg.DefaultLanguage),
		production.WithThumbnailDefaults(dir.ImageModel(), dir.AspectRatio()),
	)

	var archive worker.Archiver
	if cfg.StorageEnabled() {
		archive = storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
		log.Println("Initialized Supabase storage")
	}

	g, gctx := errgroup.WithContext(ctx)

	// Dispatch: Redis queue when configured, in-process otherwise
	var dispatcher api.Dispatcher
	if cfg.RedisURL != "" {
		q, err := queue.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		dispatcher = q
		log.Println("Connected to Redis queue")

		if cfg.WorkerEnabled {
			w := worker.New(controller, q, archive, jobs)
			g.Go(func() error { return w.Start(gctx, cfg.MaxConcurrentJobs) })
		}
	} else {
		// In-process jobs die with the process, so stored in-flight flags are stale
		if cfg.DatabaseURL != "" {
			n, err := controller.RecoverInterrupted(ctx)
			if err != nil {
				log.Fatalf("Failed to recover interrupted productions: %v", err)
			}
			if n > 0 {
				log.Printf("Marked %d interrupted productions as failed", n)
			}
		}
		inline := worker.NewInline(gctx, worker.New(controller, nil, archive, jobs), cfg.MaxConcurrentJobs)
		defer inline.Wait()
		dispatcher = inline
		log.Println("No REDIS_URL set, jobs run in-process")
	}

	handler := api.NewHandler(controller, dispatcher, jobsList, api.HandlerConfig{
		DefaultLanguage:    cfg.DefaultLanguage,
		DefaultTotalScenes: cfg.DefaultTotalScenes,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
	}
	log.Println("Server exited")
}
