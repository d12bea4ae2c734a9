// Package service implements the management operations around the toggle:
// flipping the server on and off, reporting status and handing out the
// current credential pair.
package service

import (
	"context"
	"fmt"
	"time"

	"sftpgate/internal/common/constants"
	"sftpgate/internal/common/logger"
	"sftpgate/internal/common/utils"
	"sftpgate/internal/metrics"
	"sftpgate/internal/store"
	"sftpgate/internal/toggle"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

var (
	ErrNotEnabled    = errors.New("SFTP is not enabled")
	ErrExpired       = errors.New("SFTP credentials have expired")
	ErrNoCredentials = errors.New("no credentials found")
)

// ToggleResult reports the outcome of one toggle flip
type ToggleResult struct {
	Status      string              `json:"status"`
	Enabled     bool                `json:"enabled"`
	Credentials *toggle.Credentials `json:"credentials,omitempty"`
	ExpiresAt   string              `json:"expires_at,omitempty"`
}

type StatusResult struct {
	Enabled          bool   `json:"enabled"`
	ExpiresAt        string `json:"expires_at,omitempty"`
	ExpiresInSeconds *int64 `json:"expires_in_seconds,omitempty"`
}

type CredentialsResult struct {
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	BindAddrs []string `json:"bind_addrs"`
	Port      int      `json:"port"`
	RootDir   string   `json:"root_dir"`
}

type Service struct {
	lg      *zap.SugaredLogger
	state   *toggle.State
	store   *store.Store
	metrics *metrics.Metrics

	bindHost string
	port     int
}

func NewService(ctx context.Context, state *toggle.State, st *store.Store, m *metrics.Metrics, bindHost string, port int) *Service {
	return &Service{
		lg:       logger.FromContext(ctx).Named("service"),
		state:    state,
		store:    st,
		metrics:  m,
		bindHost: bindHost,
		port:     port,
	}
}

// Toggle flips the server state. Enabled goes to disabled; disabled goes
// to enabled with a freshly generated credential pair valid for
// expirationDays from now. Zero days produces a window that is already
// over by the next expiry check.
func (s *Service) Toggle(ctx context.Context, expirationDays int) (*ToggleResult, error) {
	if expirationDays < 0 {
		return nil, errors.Errorf("expiration days must not be negative: %d", expirationDays)
	}

	if s.state.IsEnabled() {
		s.state.Disable()
		s.lg.Info("SFTP server disabled")
		if s.metrics != nil {
			s.metrics.Toggles.WithLabelValues("disable").Inc()
		}
		if s.store != nil {
			s.store.RecordEvent(ctx, store.EventDisabled, "toggled off")
		}
		return &ToggleResult{Status: "disabled", Enabled: false}, nil
	}

	creds := toggle.Credentials{
		Username: utils.GenAlnum(constants.UsernameLength),
		Password: utils.GenAlnum(constants.PasswordLength),
	}
	expiresAt := time.Now().Add(time.Duration(expirationDays) * 24 * time.Hour)
	s.state.Enable(creds, expiresAt)

	s.lg.Infof("SFTP server enabled for user %s until %s", creds.Username, expiresAt.Format(time.RFC3339))
	if s.metrics != nil {
		s.metrics.Toggles.WithLabelValues("enable").Inc()
	}
	if s.store != nil {
		s.store.RecordEvent(ctx, store.EventEnabled,
			fmt.Sprintf("user %s, expires %s", creds.Username, expiresAt.Format(time.RFC3339)))
	}

	return &ToggleResult{
		Status:      "enabled",
		Enabled:     true,
		Credentials: &creds,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// Status reports the current window. An expired window is disabled on the
// spot and reported as disabled.
func (s *Service) Status(ctx context.Context) *StatusResult {
	snap := s.state.Snapshot()

	if !snap.Enabled {
		return &StatusResult{Enabled: false}
	}
	if expired(snap) {
		s.expire(ctx, "expired at status check")
		return &StatusResult{Enabled: false}
	}

	seconds := int64(time.Until(snap.ExpiresAt).Seconds())
	return &StatusResult{
		Enabled:          true,
		ExpiresAt:        snap.ExpiresAt.Format(time.RFC3339),
		ExpiresInSeconds: &seconds,
	}
}

// Credentials returns the current pair with connection parameters, or a
// sentinel error describing why there is none.
func (s *Service) Credentials(ctx context.Context) (*CredentialsResult, error) {
	snap := s.state.Snapshot()

	if !snap.Enabled {
		return nil, ErrNotEnabled
	}
	if expired(snap) {
		s.expire(ctx, "expired at credentials check")
		return nil, ErrExpired
	}
	if snap.Credentials == nil {
		s.lg.Error("Enabled state with no credentials")
		return nil, ErrNoCredentials
	}

	return &CredentialsResult{
		Username:  snap.Credentials.Username,
		Password:  snap.Credentials.Password,
		BindAddrs: []string{s.bindHost},
		Port:      s.port,
		RootDir:   snap.RootDir,
	}, nil
}

func (s *Service) expire(ctx context.Context, detail string) {
	s.state.Disable()
	s.lg.Info("SFTP credentials expired, disabling")
	if s.metrics != nil {
		s.metrics.Toggles.WithLabelValues("expire").Inc()
	}
	if s.store != nil {
		s.store.RecordEvent(ctx, store.EventExpired, detail)
	}
}

func expired(snap toggle.Snapshot) bool {
	return !snap.ExpiresAt.IsZero() && !time.Now().Before(snap.ExpiresAt)
}
