package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nophish/internal/auth"
	"nophish/internal/commands"
	"nophish/internal/reveal"

	"github.com/charmbracelet/log"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

type api struct {
	commands *commands.Service
	health   HealthFunc
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCommandError maps command errors onto status codes. Unexpected errors
// get a generic message.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, commands.ErrInvalidArgument), errors.Is(err, commands.ErrHistoryRange):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, commands.ErrForbidden):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, reveal.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, commands.ErrUnavailable):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		log.Error("Command failed", "error", err)
		writeError(w, "Something went wrong, please try again later", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func invoker(w http.ResponseWriter, r *http.Request) (commands.Invoker, bool) {
	identity, err := auth.IdentityFromRequest(r)
	if err != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return commands.Invoker{}, false
	}
	return commands.Invoker{
		GuildID:   identity.GuildID,
		GuildName: identity.GuildName,
		UserID:    identity.UserID,
		Username:  identity.Username,
	}, true
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter wires every admin route. Everything except /health and /version
// requires a bearer token.
func NewRouter(svc *commands.Service, health HealthFunc) http.Handler {
	a := &api{commands: svc, health: health}

	router := http.NewServeMux()
	router.HandleFunc("GET /health", a.getHealth)
	router.HandleFunc("GET /version", getVersion)

	router.Handle("POST /check", auth.RequireAuth(http.HandlerFunc(a.checkDomain)))

	router.Handle("GET /blacklist", auth.RequireAuth(http.HandlerFunc(a.listBlacklist)))
	router.Handle("POST /blacklist", auth.RequireAuth(http.HandlerFunc(a.addBlacklist)))
	router.Handle("DELETE /blacklist/{domain}", auth.RequireAuth(http.HandlerFunc(a.removeBlacklist)))

	router.Handle("GET /whitelist", auth.RequireAuth(http.HandlerFunc(a.listWhitelist)))
	router.Handle("POST /whitelist", auth.RequireAuth(http.HandlerFunc(a.addWhitelist)))
	router.Handle("DELETE /whitelist/{domain}", auth.RequireAuth(http.HandlerFunc(a.removeWhitelist)))

	router.Handle("GET /config", auth.RequireAuth(http.HandlerFunc(a.getConfig)))
	router.Handle("PUT /config", auth.RequireAuth(http.HandlerFunc(a.updateConfig)))
	router.Handle("POST /defend", auth.RequireAuth(http.HandlerFunc(a.setDefending)))

	router.Handle("GET /history", auth.RequireAuth(http.HandlerFunc(a.getHistory)))
	router.Handle("GET /stats", auth.RequireAuth(http.HandlerFunc(a.getStats)))
	router.Handle("POST /report", auth.RequireAuth(http.HandlerFunc(a.reportDomain)))
	router.Handle("POST /reveal/{token}", auth.RequireAuth(http.HandlerFunc(a.revealToken)))
	router.Handle("POST /feed/refresh", auth.RequireAuth(http.HandlerFunc(a.refreshFeed)))
	router.Handle("GET /settings", auth.RequireAuth(http.HandlerFunc(a.getRuntimeSettings)))
	router.Handle("PUT /settings", auth.RequireAuth(http.HandlerFunc(a.updateRuntimeSettings)))

	log.Debug("Routes opened")
	return enableCORS(router)
}

// OpenRoutes serves handler on port until ctx ends, then shuts down gracefully.
func OpenRoutes(ctx context.Context, port int, handler http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting nophish backend on port :%d", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
