package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"checkwise/api/internal/app"
	"checkwise/api/internal/blob"
	"checkwise/api/internal/config"
	"checkwise/api/internal/gitrepo"
	"checkwise/api/internal/review"
	"checkwise/api/internal/search"
	"checkwise/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	gitService := gitrepo.New(cfg.ReposDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	var reviewStore *review.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		reviewStore, err = review.NewRedisStore(cfg.RedisURL, cfg.ReviewTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer reviewStore.Close()
		log.Printf("Review parking enabled via Redis")
	} else {
		log.Printf("Review parking disabled, impact reports are returned inline only")
	}

	var blobStore *blob.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobStore, err = blob.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		log.Printf("Raw document archive enabled on bucket %s", cfg.MinioBucket)
	}

	var service *app.Service
	if reviewStore != nil {
		service = app.NewService(dataStore, reviewStore, gitService, searchService, blobStore)
	} else {
		service = app.NewService(dataStore, nil, gitService, searchService, blobStore)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.SyncToken)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Checkwise API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
