// Package sshd runs the SSH front of the SFTP server: password auth
// against the current toggle snapshot and "sftp" subsystem dispatch.
package sshd

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"sftpgate/internal/common/logger"
	"sftpgate/internal/common/network"
	"sftpgate/internal/metrics"
	"sftpgate/internal/sftpd"
	"sftpgate/internal/store"
	"sftpgate/internal/toggle"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	realssh "golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	Host string
	Port int
	// Timeout for marking client as dead
	Timeout time.Duration
}

type Server struct {
	lg        *zap.SugaredLogger
	state     *toggle.State
	store     *store.Store
	metrics   *metrics.Metrics
	sshConfig *realssh.ServerConfig
	config    *Config
	listener  net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

var errAuthRejected = errors.New("authentication rejected")

func NewServer(ctx context.Context, state *toggle.State, signer realssh.Signer, st *store.Store, m *metrics.Metrics, config *Config) *Server {
	lg := logger.FromContext(ctx).Named("sshd")

	srv := &Server{
		lg:      lg,
		state:   state,
		store:   st,
		metrics: m,
		config:  config,
		conns:   make(map[net.Conn]struct{}),
	}

	sshConfig := &realssh.ServerConfig{
		NoClientAuth:      false,
		PasswordCallback:  srv.passwordCallback,
		PublicKeyCallback: srv.publicKeyCallback,
	}
	sshConfig.AddHostKey(signer)
	srv.sshConfig = sshConfig

	return srv
}

// Listen binds the listener. Kept apart from Serve so a bind failure
// surfaces synchronously to the caller.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "bind sftp listener")
	}
	s.listener = listener
	s.lg.Infof("SFTP server listening on %s", addr)
	return nil
}

// Addr returns the bound listener address, nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled. Cancellation closes
// the listener and every live connection without draining.
func (s *Server) Serve(ctx context.Context) error {
	defer s.CloseListener()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					// avoid busy loop
					continue
				}
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					return nil
				}
				s.lg.Errorf("Failed to accept connection: %v", err)
				return err
			}
			if conn != nil {
				go s.handleConnection(ctx, conn)
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		if err := s.CloseListener(); err != nil {
			s.lg.Warnf("Close listener: %v", err)
		}
		s.closeConnections()
		s.lg.Info("Stop SFTP server")
		return nil
	})

	return g.Wait()
}

// CloseListener closes listener if it's active
func (s *Server) CloseListener() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) trackConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ConnectionsActive.Inc()
	}
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ConnectionsActive.Dec()
	}
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	lg := s.lg

	lg.Debugf("New TCP connection from %s", conn.RemoteAddr().String())
	s.trackConn(conn)
	defer s.untrackConn(conn)

	// create connection with timeout
	timeoutConn := network.NewTimeoutConn(conn, s.config.Timeout)
	defer timeoutConn.Close()

	sshConn, chans, reqs, err := realssh.NewServerConn(timeoutConn, s.sshConfig)
	if err != nil {
		lg.Warnf("SSH handshake failed: %v", err)
		return
	}
	defer sshConn.Close()

	lg.Infof("New SSH connection from %s (%s)", sshConn.RemoteAddr(), sshConn.ClientVersion())
	if s.store != nil {
		s.store.RecordEvent(ctx, store.EventSessionOpened,
			fmt.Sprintf("%s from %s", sshConn.User(), sshConn.RemoteAddr()))
	}

	go realssh.DiscardRequests(reqs)
	s.handleChannels(ctx, lg, chans)

	if s.store != nil {
		s.store.RecordEvent(ctx, store.EventSessionClosed,
			fmt.Sprintf("%s from %s", sshConn.User(), sshConn.RemoteAddr()))
	}
	lg.Infof("SSH connection closed from %s", sshConn.RemoteAddr())
}

func (s *Server) handleChannels(ctx context.Context, lg *zap.SugaredLogger, chans <-chan realssh.NewChannel) {
	reg := newChannelRegistry()
	var wg sync.WaitGroup

	for newChannel := range chans {
		lg.Debugf("Requested channel: %s", newChannel.ChannelType())
		switch newChannel.ChannelType() {
		case "session":
			channel, requests, err := newChannel.Accept()
			if err != nil {
				lg.Errorf("Failed to accept channel: %v", err)
				continue
			}
			id := reg.add(channel)
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handleSession(ctx, lg.Named(fmt.Sprintf("[ch%d]", id)), reg, id, channel, requests)
			}()
		default:
			lg.Warnf("Unsupported channel type: %s", newChannel.ChannelType())
			newChannel.Reject(realssh.UnknownChannelType, "unsupported channel type")
		}
	}
	wg.Wait()
	reg.closeAll()
}

func (s *Server) handleSession(ctx context.Context, lg *zap.SugaredLogger, reg *channelRegistry, id uint64, channel realssh.Channel, requests <-chan *realssh.Request) {
	extChannel := NewExtendedChannel(channel)
	defer extChannel.CloseWithStatus(1)

	for req := range requests {
		lg.Debugf("Session request: %s", req.Type)
		switch req.Type {
		case "subsystem":
			subsystem, err := ParseSubsystemReq(req)
			if err != nil {
				lg.Warnf("Failed to parse subsystem request: %v", err)
				req.Reply(false, nil)
				continue
			}
			if subsystem.Name != "sftp" {
				lg.Warnf("Unsupported subsystem: %s", subsystem.Name)
				req.Reply(false, nil)
				continue
			}

			// the channel byte stream now belongs to the subsystem
			reg.remove(id)
			req.Reply(true, nil)
			go realssh.DiscardRequests(requests)

			if err := s.runSftp(ctx, lg, channel); err != nil {
				extChannel.CloseWithStatus(1)
				return
			}
			extChannel.CloseWithStatus(0)
			return
		default:
			lg.Warnf("Unsupported session request: %s", req.Type)
			req.Reply(false, nil)
		}
	}
}

func (s *Server) runSftp(ctx context.Context, lg *zap.SugaredLogger, channel realssh.Channel) error {
	// the root dir is pinned here for the whole session
	rootDir := s.state.RootDir()

	if s.metrics != nil {
		s.metrics.SessionsActive.Inc()
		defer s.metrics.SessionsActive.Dec()
	}
	if s.store != nil {
		s.store.RecordEvent(ctx, store.EventSubsystemStarted, fmt.Sprintf("sftp, root %s", rootDir))
	}
	lg.Infof("Starting sftp subsystem with root %s", rootDir)

	sess := sftpd.NewSession(logger.WithLogger(ctx, lg), rootDir, s.metrics)
	if err := sess.Serve(channel); err != nil {
		lg.Warnf("Sftp session ended with error: %v", err)
		return err
	}
	lg.Debug("Sftp session finished")
	return nil
}

// passwordCallback checks the presented pair against the current toggle
// snapshot. Every rejection looks the same from the client side.
func (s *Server) passwordCallback(conn realssh.ConnMetadata, password []byte) (*realssh.Permissions, error) {
	snap := s.state.Snapshot()

	expired := !snap.ExpiresAt.IsZero() && !time.Now().Before(snap.ExpiresAt)
	if !snap.Enabled || snap.Credentials == nil || expired {
		s.lg.Warnf("Authentication rejected for %s from %s: not accepting logins", conn.User(), conn.RemoteAddr())
		s.recordAuthFailure(conn)
		return nil, errAuthRejected
	}

	if conn.User() != snap.Credentials.Username || string(password) != snap.Credentials.Password {
		s.lg.Warnf("Authentication failed for %s from %s", conn.User(), conn.RemoteAddr())
		s.recordAuthFailure(conn)
		return nil, errAuthRejected
	}

	s.lg.Infof("Authentication succeeded for %s from %s", conn.User(), conn.RemoteAddr())
	if s.metrics != nil {
		s.metrics.AuthAttempts.WithLabelValues("success").Inc()
	}
	if s.store != nil {
		s.store.RecordEvent(context.Background(), store.EventAuthSuccess,
			fmt.Sprintf("%s from %s", conn.User(), conn.RemoteAddr()))
	}
	return &realssh.Permissions{}, nil
}

// publicKeyCallback rejects every key, password is the only auth method
func (s *Server) publicKeyCallback(conn realssh.ConnMetadata, _ realssh.PublicKey) (*realssh.Permissions, error) {
	s.lg.Debugf("Rejected public key auth for %s from %s", conn.User(), conn.RemoteAddr())
	s.recordAuthFailure(conn)
	return nil, errAuthRejected
}

func (s *Server) recordAuthFailure(conn realssh.ConnMetadata) {
	if s.metrics != nil {
		s.metrics.AuthAttempts.WithLabelValues("failure").Inc()
	}
	if s.store != nil {
		s.store.RecordEvent(context.Background(), store.EventAuthFailure,
			fmt.Sprintf("%s from %s", conn.User(), conn.RemoteAddr()))
	}
}

// channelRegistry tracks accepted session channels by monotonically
// increasing id until a subsystem claims them
type channelRegistry struct {
	mu     sync.Mutex
	nextID uint64
	chans  map[uint64]realssh.Channel
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{nextID: 1, chans: make(map[uint64]realssh.Channel)}
}

func (r *channelRegistry) add(ch realssh.Channel) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.chans[id] = ch
	return id
}

func (r *channelRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chans, id)
}

// closeAll closes channels never claimed by a subsystem
func (r *channelRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.chans {
		ch.Close()
		delete(r.chans, id)
	}
}
