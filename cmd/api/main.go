package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"toptry/internal/auth"
	"toptry/internal/config"
	"toptry/internal/events"
	"toptry/internal/imaging"
	"toptry/internal/looks"
	"toptry/internal/media"
	"toptry/internal/render"
	"toptry/internal/server"
	"toptry/internal/social"
	"toptry/internal/storage"
	"toptry/internal/wardrobe"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfg := config.FromEnv()

	ctx := context.Background()
	store, err := storage.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	var blobs media.Store
	if cfg.Media.Endpoint != "" && cfg.Media.AccessKey != "" && cfg.Media.SecretKey != "" {
		blobs, err = media.NewStore(ctx, media.Config{
			Bucket:         cfg.Media.Bucket,
			Region:         cfg.Media.Region,
			Endpoint:       cfg.Media.Endpoint,
			AccessKey:      cfg.Media.AccessKey,
			SecretKey:      cfg.Media.SecretKey,
			KeyPrefix:      cfg.Media.KeyPrefix,
			ForcePathStyle: cfg.Media.ForcePathStyle,
		})
		if err != nil {
			log.Fatalf("failed to init media store: %v", err)
		}
		if ensurer, ok := blobs.(interface{ EnsureBucket(context.Context) error }); ok {
			ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := ensurer.EnsureBucket(ensureCtx); err != nil {
				log.Printf("ensure bucket: %v", err)
			}
			cancel()
		}
	} else {
		blobs, err = media.NewLocalStore("")
		if err != nil {
			log.Fatalf("failed to init local media storage: %v", err)
		}
		log.Println("media store: using local temp storage (MinIO config missing)")
	}

	normalizer := imaging.NewNormalizer(cfg.InternalBaseURL, cfg.TryOn.MaxSide, cfg.TryOn.Quality)
	renderClient := render.NewClient(cfg.GeminiAPIKey, "", "", 60*time.Second)

	sessions := auth.SessionManager{
		Secret:       []byte(cfg.Session.Secret),
		Duration:     cfg.Session.Duration,
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.Secure,
	}

	broker := events.NewBroker()

	pipeline := &looks.Pipeline{
		Normalizer: normalizer,
		Renderer:   renderClient,
		Blobs:      blobs,
		Store:      store,
	}

	srv := server.New(cfg.Port, server.Deps{
		AuthHandler:    auth.Handler{Store: store, Sessions: sessions},
		AuthMiddleware: auth.Middleware{Store: store, Sessions: sessions},
		LookHandler:    &looks.Handler{Pipeline: pipeline, Store: store, Broker: broker},
		WardrobeHandler: &wardrobe.Handler{
			Store:      store,
			Blobs:      blobs,
			Normalizer: normalizer,
			Extractor:  renderClient,
		},
		SocialHandler: &social.Handler{Store: store},
		Media:         blobs,
		Broker:        broker,
		CORSOrigins:   cfg.CORSOrigins,
	})

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		log.Println("shutting down server...")
		if err := srv.Close(); err != nil {
			log.Printf("server close error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
