package omada

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionState describes where the session sits in its lifecycle.
type SessionState string

// Session states.
const (
	// StateUnauthenticated: no valid token is held.
	StateUnauthenticated SessionState = "unauthenticated"

	// StateAuthenticated: a token is held and presumed valid.
	StateAuthenticated SessionState = "authenticated"

	// StateRefreshPending: a 401 was observed or the scheduled refresh
	// fired; a refresh is queued but has not completed yet.
	StateRefreshPending SessionState = "refresh_pending"
)

// refreshKey identifies the debounced reactive refresh task.
const refreshKey = "session-refresh"

// Session owns the controller login lifecycle: the current token, the
// controller instance identifier, the scheduled long-interval refresh,
// and the debounced reactive refresh triggered by 401 responses.
//
// The token is written only here; all other components read it through
// Token(). Refresh and login are the same operation against this
// controller, there is no incremental token renewal.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	client   *Client
	username string
	password string

	refreshInterval time.Duration
	refreshDebounce time.Duration
	scheduler       *Scheduler

	state        SessionState
	token        string
	controllerID string
	mu           sync.RWMutex

	// onLogin is invoked with the outcome of every login attempt,
	// wired to the connectivity leaf. May be nil.
	onLogin   func(connected bool)
	onLoginMu sync.RWMutex

	// Base context for tasks fired from timers.
	ctx       context.Context
	ctxCancel context.CancelFunc

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  bool

	logger Logger
}

// SessionOptions holds configuration for creating a session.
type SessionOptions struct {
	// Client is the controller HTTP client.
	Client *Client

	// Username and Password are the controller credentials.
	Username string
	Password string

	// RefreshInterval is the scheduled refresh period (default 24h).
	RefreshInterval time.Duration

	// RefreshDebounce is the delay before a reactive refresh fires
	// (default 60s). Repeated 401s within the window collapse into one
	// pending refresh.
	RefreshDebounce time.Duration

	// Scheduler runs the debounced reactive refresh.
	Scheduler *Scheduler

	// Logger is optional structured logging.
	Logger Logger
}

// NewSession creates a session in the unauthenticated state.
func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}

	refreshInterval := opts.RefreshInterval
	if refreshInterval == 0 {
		refreshInterval = 24 * time.Hour
	}
	refreshDebounce := opts.RefreshDebounce
	if refreshDebounce == 0 {
		refreshDebounce = 60 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		client:          opts.Client,
		username:        opts.Username,
		password:        opts.Password,
		refreshInterval: refreshInterval,
		refreshDebounce: refreshDebounce,
		scheduler:       opts.Scheduler,
		state:           StateUnauthenticated,
		ctx:             ctx,
		ctxCancel:       cancel,
		done:            make(chan struct{}),
		logger:          opts.Logger,
	}, nil
}

// SetOnLogin registers a callback invoked with the outcome of every
// login attempt. Used to drive the connectivity indicator leaf.
func (s *Session) SetOnLogin(fn func(connected bool)) {
	s.onLoginMu.Lock()
	s.onLogin = fn
	s.onLoginMu.Unlock()
}

// Login performs the full exchange: discovery of the controller
// instance identifier, then the credential POST. On success the session
// becomes authenticated; on any failure it returns to unauthenticated.
// No retry happens here; callers rely on the next scheduled attempt.
func (s *Session) Login(ctx context.Context) error {
	controllerID, err := s.client.DiscoverControllerID(ctx)
	if err != nil {
		s.loginFailed()
		return fmt.Errorf("controller discovery: %w", err)
	}

	token, err := s.client.Login(ctx, controllerID, s.username, s.password)
	if err != nil {
		s.loginFailed()
		return fmt.Errorf("credential exchange: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.controllerID = controllerID
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.notifyLogin(true)
	s.logInfo("logged in to controller", "controller_id", controllerID)
	return nil
}

// Refresh re-runs the login exchange. The controller has no dedicated
// refresh call; a fresh login replaces the token.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Login(ctx)
}

// RequestRefresh schedules a debounced refresh. Concurrent requests
// within the debounce window collapse into a single pending refresh:
// each request replaces the previously pending one.
//
// In-flight calls that observed the 401 are not retried here; the next
// poll cycle retries naturally with the refreshed token.
func (s *Session) RequestRefresh() {
	s.mu.Lock()
	s.state = StateRefreshPending
	s.mu.Unlock()

	s.logInfo("session refresh requested", "delay", s.refreshDebounce)

	s.scheduler.Schedule(refreshKey, s.refreshDebounce, func() {
		if err := s.Refresh(s.ctx); err != nil {
			s.logError("session refresh failed", err)
		}
	})
}

// Start launches the scheduled long-interval refresh loop. The loop
// runs until Stop or context cancellation.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.state = StateRefreshPending
				s.mu.Unlock()
				if err := s.Refresh(s.ctx); err != nil {
					s.logError("scheduled session refresh failed", err)
				}
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}

// Stop halts the refresh loop and cancels any pending reactive refresh.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.ctxCancel()
		s.scheduler.Cancel(refreshKey)
		s.wg.Wait()
	})
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the current session token, or empty when
// unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ControllerID returns the discovered controller instance identifier.
func (s *Session) ControllerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controllerID
}

func (s *Session) loginFailed() {
	s.mu.Lock()
	s.token = ""
	s.state = StateUnauthenticated
	s.mu.Unlock()
	s.notifyLogin(false)
}

func (s *Session) notifyLogin(connected bool) {
	s.onLoginMu.RLock()
	fn := s.onLogin
	s.onLoginMu.RUnlock()
	if fn != nil {
		fn(connected)
	}
}

func (s *Session) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Session) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
