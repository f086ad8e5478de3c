// Package server provides HTTP server initialization and lifecycle management
// for the mnemik review API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/mnemik/mnemik/internal/config"
	"github.com/mnemik/mnemik/internal/scheduler"
	"github.com/mnemik/mnemik/internal/stats"
	"github.com/mnemik/mnemik/internal/storage"
	"github.com/mnemik/mnemik/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server. It returns the actual
// address being listened on (useful for testing with port 0) and the
// WebSocketHub so callers can wire additional broadcasts. The server shuts
// down gracefully when ctx is cancelled.
func Start(ctx context.Context, cfg *config.Config, store storage.ReviewStore) (string, *handlers.WebSocketHub, error) {
	mux := http.NewServeMux()

	wsHub := handlers.NewWebSocketHub()
	go wsHub.Run()

	// 10 req/sec sustained, burst of 20.
	rateLimiter := handlers.NewRateLimiter(10.0, 20)

	sched := scheduler.NewServiceWithConfig(store, scheduler.Config{
		ReplayWindow: cfg.ReplayWindow(),
	})
	aggregator := stats.NewAggregator(store)

	api := handlers.NewReviewHandlers(sched, store, cfg, wsHub)
	statsHandlers := handlers.NewStatsHandlers(aggregator, store, cfg)
	activityHandler := handlers.NewActivityHandler(store)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/reviews", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			api.ScheduleReview(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/reviews/due", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			api.ListDue(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.GetReview(w, r)
		case http.MethodDelete:
			api.DeleteReview(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/reviews/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			api.CompleteReview(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	apiMux.HandleFunc("/api/stats/overview", statsHandlers.GetOverview)
	apiMux.HandleFunc("/api/stats/upcoming", statsHandlers.GetUpcoming)
	apiMux.HandleFunc("/api/stats/daily", statsHandlers.GetDaily)
	apiMux.HandleFunc("/api/stats/weekly", statsHandlers.GetWeekly)
	apiMux.HandleFunc("/api/activity", activityHandler.GetActivity)
	apiMux.HandleFunc("/api/config/user", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			api.GetUserConfig(w, r)
		case http.MethodPost:
			api.PostUserConfig(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health endpoint stays outside auth so monitoring can reach it.
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","version":"1.0.0"}`))
	})

	// Wrap API routes with auth middleware
	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// WebSocket endpoint (no auth required - origin validation handles security)
	mux.Handle("/ws", wsHub)

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
