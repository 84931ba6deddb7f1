package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/praxislabs/praxis/backend/internal/config"
	"github.com/praxislabs/praxis/backend/internal/handler"
	chatHandler "github.com/praxislabs/praxis/backend/internal/handler/chat"
	moduleModel "github.com/praxislabs/praxis/backend/internal/model/module"
	"github.com/praxislabs/praxis/backend/internal/service/ai"
	chatService "github.com/praxislabs/praxis/backend/internal/service/chat"
	"github.com/praxislabs/praxis/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := store.InitSchema(db); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}

	chatSvc := chatService.NewService(db)
	catalog := moduleModel.NewStaticCatalog(moduleModel.Seed())
	resolver := ai.NewResolver(moduleModel.SeedPrompts(), ai.DefaultInstruction)

	// Initialize the generation service. Missing or bad provider credentials
	// degrade the chat endpoint to fallback replies, they never stop startup.
	var generator chatHandler.Generator
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing with fallback replies only")
		} else {
			generator = aiSvc
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("GOOGLE_CLOUD_PROJECT not set, continuing with fallback replies only")
	}

	router := handler.NewRouter(catalog, chatSvc, generator, resolver)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Praxis backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
