package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"toptry/internal/auth"
	"toptry/internal/events"
	"toptry/internal/looks"
	"toptry/internal/media"
	"toptry/internal/social"
	"toptry/internal/wardrobe"
)

// Deps bundles everything the router needs.
type Deps struct {
	AuthHandler     auth.Handler
	AuthMiddleware  auth.Middleware
	LookHandler     *looks.Handler
	WardrobeHandler *wardrobe.Handler
	SocialHandler   *social.Handler
	Media           media.Store
	Broker          *events.Broker
	CORSOrigins     []string
}

// New constructs the HTTP server with routes and middleware.
func New(port string, deps Deps) *http.Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Use(deps.AuthMiddleware.InjectUser)

	healthHandler := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
	router.Get("/health", healthHandler)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", deps.AuthHandler.Register)
			r.Post("/login", deps.AuthHandler.Login)
			r.Post("/logout", deps.AuthHandler.Logout)
			r.Get("/me", deps.AuthHandler.Me)
		})

		r.Route("/wardrobe", func(r chi.Router) {
			r.Post("/extract", deps.WardrobeHandler.Extract)
			r.With(auth.RequireAuth).Post("/save", deps.WardrobeHandler.Save)
			r.With(auth.RequireAuth).Get("/list", deps.WardrobeHandler.List)
			r.With(auth.RequireAuth).Delete("/{id}", deps.WardrobeHandler.Delete)
		})

		r.With(auth.RequireAuth).Post("/tryon", deps.LookHandler.TryOn)

		r.Route("/looks", func(r chi.Router) {
			r.Get("/public", deps.LookHandler.Public)
			r.With(auth.RequireAuth).Post("/create", deps.LookHandler.Create)
			r.With(auth.RequireAuth).Get("/my", deps.LookHandler.My)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", deps.LookHandler.Get)
				r.With(auth.RequireAuth).Patch("/visibility", deps.LookHandler.Visibility)
				r.With(auth.RequireAuth).Post("/like", deps.LookHandler.Like)
				r.Get("/comments", deps.LookHandler.Comments)
				r.With(auth.RequireAuth).Post("/comments", deps.LookHandler.AddComment)
			})
		})

		r.With(auth.RequireAuth).Post("/users/{id}/follow", deps.SocialHandler.ToggleFollow)
		r.With(auth.RequireAuth).Get("/feed/following", deps.SocialHandler.FollowingFeed)

		r.Get("/events", streamEvents(deps.Broker))
	})

	router.Get("/media/*", serveMedia(deps.Media))

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: image generation and SSE streams outlive any
		// reasonable fixed deadline.
	}

	log.Println("server ready on", srv.Addr)
	return srv
}

// serveMedia streams a stored blob. Keys are immutable, so responses carry an
// aggressive cache policy.
func serveMedia(store media.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if key == "" {
			http.NotFound(w, r)
			return
		}

		body, err := store.Open(r.Context(), key)
		if err != nil {
			if err == media.ErrNotFound || err == media.ErrDisabled {
				http.NotFound(w, r)
				return
			}
			log.Printf("open media %s: %v", key, err)
			http.Error(w, "media unavailable", http.StatusInternalServerError)
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", media.ContentTypeForKey(key))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		if _, err := io.Copy(w, body); err != nil {
			log.Printf("stream media %s: %v", key, err)
		}
	}
}

// streamEvents pushes social updates over SSE until the client disconnects.
func streamEvents(broker *events.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch := broker.Subscribe()
		defer broker.Unsubscribe(ch)

		keepAlive := time.NewTicker(25 * time.Second)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case evt := <-ch:
				data, err := json.Marshal(evt)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
				flusher.Flush()
			}
		}
	}
}
