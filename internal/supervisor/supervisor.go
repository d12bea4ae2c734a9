// Package supervisor reconciles the desired state of the SFTP server
// (the toggle) with the actual state (a running server task).
package supervisor

import (
	"context"
	"net"
	"sync"
	"time"

	"sftpgate/internal/common/constants"
	"sftpgate/internal/common/logger"
	"sftpgate/internal/metrics"
	"sftpgate/internal/sshd"
	"sftpgate/internal/store"
	"sftpgate/internal/toggle"

	"go.uber.org/zap"
	realssh "golang.org/x/crypto/ssh"
)

type serverTask struct {
	srv    *sshd.Server
	cancel context.CancelFunc
	done   chan struct{}
}

type Supervisor struct {
	lg       *zap.SugaredLogger
	state    *toggle.State
	store    *store.Store
	metrics  *metrics.Metrics
	signer   realssh.Signer
	config   *sshd.Config
	interval time.Duration

	mu   sync.Mutex
	task *serverTask
}

func NewSupervisor(ctx context.Context, state *toggle.State, signer realssh.Signer, st *store.Store, m *metrics.Metrics, config *sshd.Config) *Supervisor {
	return &Supervisor{
		lg:       logger.FromContext(ctx).Named("supervisor"),
		state:    state,
		store:    st,
		metrics:  m,
		signer:   signer,
		config:   config,
		interval: constants.ReconcileInterval * time.Second,
	}
}

// Run drives the reconcile loop until ctx is cancelled. Any running
// server task is stopped before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	s.lg.Infof("Supervisor started, reconcile interval %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stopTask(context.Background())
			s.lg.Info("Supervisor stopped")
			return nil
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// Addr returns the bound address of the live server task, nil when there
// is none
func (s *Supervisor) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task == nil {
		return nil
	}
	return s.task.srv.Addr()
}

func (s *Supervisor) reconcile(ctx context.Context) {
	// expiry wins over everything else this tick
	if s.state.IsEnabled() && s.state.IsExpired() {
		s.lg.Info("Credentials expired, disabling SFTP")
		s.state.Disable()
		if s.metrics != nil {
			s.metrics.Toggles.WithLabelValues("expire").Inc()
		}
		if s.store != nil {
			s.store.RecordEvent(ctx, store.EventExpired, "expired, forced disable")
		}
	}

	desired := s.state.IsEnabled()
	actual := s.taskAlive()

	switch {
	case desired && !actual:
		s.startTask(ctx)
	case !desired && actual:
		s.stopTask(ctx)
	}
}

func (s *Supervisor) taskAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task == nil {
		return false
	}
	select {
	case <-s.task.done:
		// the task exited on its own, free the slot
		s.lg.Warn("Server task exited unexpectedly")
		s.task = nil
		return false
	default:
		return true
	}
}

func (s *Supervisor) startTask(ctx context.Context) {
	if creds := s.state.Credentials(); creds == nil {
		// enabled without credentials breaks the state invariant
		s.lg.Error("Enabled state with no credentials, forcing disable")
		s.state.Disable()
		if s.store != nil {
			s.store.RecordEvent(ctx, store.EventServerStartFail, "no credentials in enabled state")
		}
		return
	}

	srv := sshd.NewServer(ctx, s.state, s.signer, s.store, s.metrics, s.config)
	if err := srv.Listen(); err != nil {
		s.lg.Errorf("Failed to start SFTP server: %v", err)
		s.state.Disable()
		if s.store != nil {
			s.store.RecordEvent(ctx, store.EventServerStartFail, err.Error())
		}
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.task = &serverTask{srv: srv, cancel: cancel, done: done}
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := srv.Serve(taskCtx); err != nil {
			s.lg.Errorf("SFTP server exited with error: %v", err)
		}
	}()

	s.lg.Infof("SFTP server task started on %s", srv.Addr())
	if s.store != nil {
		s.store.RecordEvent(ctx, store.EventServerStarted, srv.Addr().String())
	}
}

func (s *Supervisor) stopTask(ctx context.Context) {
	s.mu.Lock()
	task := s.task
	s.task = nil
	s.mu.Unlock()
	if task == nil {
		return
	}

	s.lg.Info("Stopping SFTP server task")
	task.cancel()
	<-task.done

	if s.store != nil {
		s.store.RecordEvent(ctx, store.EventServerStopped, "")
	}
}
