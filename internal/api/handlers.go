package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"sftpgate/internal/common/constants"
	"sftpgate/internal/service"
	"sftpgate/internal/store"

	"github.com/go-faster/errors"
)

type healthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.respondData(w, http.StatusOK, healthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       constants.Version,
		UptimeSeconds: int64(time.Since(a.started).Seconds()),
	})
}

type toggleRequest struct {
	ExpirationDays *int `json:"expiration_days"`
}

func (a *API) handleToggle(w http.ResponseWriter, r *http.Request) {
	days := constants.DefaultExpirationDays

	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body) > 0 {
		var req toggleRequest
		if err := json.Unmarshal(body, &req); err != nil {
			a.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ExpirationDays != nil {
			days = *req.ExpirationDays
		}
	}
	if days < 0 {
		a.respondError(w, http.StatusBadRequest, "expiration_days must not be negative")
		return
	}

	res, err := a.service.Toggle(r.Context(), days)
	if err != nil {
		a.lg.Errorf("Toggle failed: %v", err)
		a.respondError(w, http.StatusInternalServerError, "failed to toggle SFTP server")
		return
	}
	a.respondData(w, http.StatusOK, res)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	a.respondData(w, http.StatusOK, a.service.Status(r.Context()))
}

func (a *API) handleCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := a.service.Credentials(r.Context())
	switch {
	case err == nil:
		a.respondData(w, http.StatusOK, creds)
	case errors.Is(err, service.ErrNotEnabled):
		a.respondError(w, http.StatusBadRequest, "SFTP is not enabled")
	case errors.Is(err, service.ErrExpired):
		a.respondError(w, http.StatusBadRequest, "SFTP credentials have expired")
	default:
		a.lg.Errorf("Failed to get credentials: %v", err)
		a.respondError(w, http.StatusInternalServerError, "No credentials found")
	}
}

type eventsResponse struct {
	Events []store.Event `json:"events"`
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		a.respondError(w, http.StatusServiceUnavailable, "event store is not available")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			a.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	events, err := a.store.RecentEvents(r.Context(), limit)
	if err != nil {
		a.lg.Errorf("Failed to list events: %v", err)
		a.respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	a.respondData(w, http.StatusOK, eventsResponse{Events: events})
}
