// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dispatch-bot/internal/bot"
	"dispatch-bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Server struct {
	server *http.Server
	logger *logger.Logger
}

func NewServer(port string, b *bot.Bot, logger *logger.Logger) *Server {
	mux := http.NewServeMux()

	// Telegram webhook endpoint: one update per request.
	mux.HandleFunc("/webhook/telegram", webhookHandler(b, logger))

	// Add health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server: httpServer,
		logger: logger,
	}
}

// webhookHandler always acknowledges with HTTP 200 and a small status-tag
// body. A non-200 would put Telegram into a retry/backoff storm over a
// single bad event, which costs more than dropping it.
func webhookHandler(b *bot.Bot, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var update tgbotapi.Update
		outcome := "bad_update"
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			log.Error("Failed to decode update", "error", err)
		} else {
			outcome = b.HandleUpdate(r.Context(), update)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": outcome}); err != nil {
			log.Error("Failed to write webhook response", "error", err)
		}
	}
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
