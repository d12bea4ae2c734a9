// Package api is the management plane: toggle, status, credentials,
// events and metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"sftpgate/internal/common/logger"
	"sftpgate/internal/metrics"
	"sftpgate/internal/service"
	"sftpgate/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

type API struct {
	lg      *zap.SugaredLogger
	service *service.Service
	store   *store.Store
	metrics *metrics.Metrics
	server  *http.Server
	started time.Time
}

func NewAPI(ctx context.Context, svc *service.Service, st *store.Store, m *metrics.Metrics, addr string) *API {
	a := &API{
		lg:      logger.FromContext(ctx).Named("api"),
		service: svc,
		store:   st,
		metrics: m,
		started: time.Now(),
	}

	// middleware order matters
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(a.requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Get("/health", a.handleHealth)
	router.Route("/sftp", func(r chi.Router) {
		r.Post("/toggle", a.handleToggle)
		r.Get("/status", a.handleStatus)
		r.Get("/credentials", a.handleCredentials)
		r.Get("/events", a.handleEvents)
	})
	if m != nil {
		router.Method(http.MethodGet, "/metrics", m.Handler())
	}

	a.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// Start serves the API until ctx is cancelled, then shuts down
// gracefully with a bounded timeout.
func (a *API) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.lg.Infof("Management API listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown api server")
		}
		a.lg.Info("Management API stopped")
		return nil
	case err := <-errChan:
		return errors.Wrap(err, "api server failed")
	}
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.lg.Debugf("%s %s -> %d (%s)", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

type dataResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (a *API) respondData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		a.lg.Errorf("Failed to encode response: %v", err)
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Message: message}); err != nil {
		a.lg.Errorf("Failed to encode response: %v", err)
	}
}
