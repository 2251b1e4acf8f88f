package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/sentinel/core/logger"
	"github.com/dmitrymomot/sentinel/pkg/broadcast"
	"github.com/dmitrymomot/sentinel/pkg/localstore"
)

// Manager owns the session of a single client tab. Session fields live in the
// local store; other tabs learn about changes through the broadcaster.
type Manager struct {
	storage  localstore.Store
	bc       broadcast.Broadcaster[SyncEvent]
	auth     AuthProvider
	profiles ProfileResolver
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
	reload   func(SyncEvent)
	source   string
	flight   singleflight.Group

	mu         sync.Mutex
	refresh    RefreshFunc
	stopCheck  context.CancelFunc
	stopListen context.CancelFunc
	checkGen   int
	listenGen  int
	wg         sync.WaitGroup
}

// New creates a manager with default timing.
func New(opts ...Option) *Manager {
	return NewFromConfig(DefaultConfig(), opts...)
}

// NewFromConfig creates a manager from cfg. Zero durations fall back to defaults.
func NewFromConfig(cfg Config, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = def.RefreshThreshold
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = def.Lifetime
	}

	m := &Manager{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.Discard(),
		source: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With(logger.Component("session"))
	if m.storage == nil {
		m.storage = localstore.NewMemory().Tab()
	}
	if m.bc == nil {
		m.bc = broadcast.NewStorageBroadcaster[SyncEvent](m.storage, SyncKey, broadcast.WithLogger(m.logger))
	}
	if m.reload == nil {
		m.reload = m.defaultReload
	}
	return m
}

// Source identifies this manager in sync events.
func (m *Manager) Source() string {
	return m.source
}

// Initialize registers the refresh callback and starts the periodic check and
// the cross-tab listener. A nil callback keeps the current one. Calling it
// again never starts a second check or listener; a loop that ended because
// its ctx was cancelled is started again.
func (m *Manager) Initialize(ctx context.Context, refresh RefreshFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if refresh != nil {
		m.refresh = refresh
	}

	if m.stopCheck == nil {
		checkCtx, cancel := context.WithCancel(ctx)
		m.stopCheck = cancel
		m.checkGen++
		m.wg.Add(1)
		go m.runCheck(checkCtx, m.checkGen)
	}

	if m.stopListen == nil {
		listenCtx, cancel := context.WithCancel(ctx)
		m.stopListen = cancel
		sub := m.bc.Subscribe(listenCtx)
		m.listenGen++
		m.wg.Add(1)
		go m.listen(listenCtx, sub, m.listenGen)
	}
}

// Save persists d, marks the account as non-demo and notifies other tabs.
func (m *Manager) Save(ctx context.Context, d Data) error {
	if !d.Present() {
		return ErrInvalidSession
	}

	var errs []error
	set := func(key, value string) {
		if value == "" {
			errs = append(errs, m.storage.Remove(key))
			return
		}
		errs = append(errs, m.storage.Set(key, value))
	}
	set(KeyToken, d.Token)
	set(KeyRefreshToken, d.RefreshToken)
	if d.ExpiresAt.IsZero() {
		// Get falls back to the session lifetime.
		set(KeyExpiresAt, "")
	} else {
		set(KeyExpiresAt, strconv.FormatInt(d.ExpiresAt.UnixMilli(), 10))
	}
	set(KeyUserID, d.UserID)
	set(KeyProfileID, d.ProfileID)
	set(KeyDemoAccount, "false")

	if err := errors.Join(errs...); err != nil {
		return errors.Join(ErrSaveSession, err)
	}

	m.publish(ctx, ActionSave, &d)
	return nil
}

// Get rebuilds the session from storage. A missing or unreadable expiry is
// treated as now plus the session lifetime.
func (m *Manager) Get() (Data, bool) {
	token, _ := m.storage.Get(KeyToken)
	userID, _ := m.storage.Get(KeyUserID)
	if token == "" || userID == "" {
		return Data{}, false
	}

	d := Data{Token: token, UserID: userID}
	d.RefreshToken, _ = m.storage.Get(KeyRefreshToken)
	d.ProfileID, _ = m.storage.Get(KeyProfileID)

	d.ExpiresAt = m.now().Add(m.cfg.Lifetime)
	if raw, ok := m.storage.Get(KeyExpiresAt); ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			d.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return d, true
}

// Restore adopts the auth provider's current session. Failures are logged and
// reported as false.
func (m *Manager) Restore(ctx context.Context) (Data, bool) {
	if m.auth == nil {
		m.logger.WarnContext(ctx, "cannot restore session without an auth provider")
		return Data{}, false
	}

	current, err := m.auth.CurrentSession(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to fetch session from auth provider", logger.Error(err))
		return Data{}, false
	}
	if current == nil || current.AccessToken == "" || current.UserID == "" {
		m.logger.DebugContext(ctx, "auth provider has no active session")
		return Data{}, false
	}

	d := Data{
		Token:        current.AccessToken,
		RefreshToken: current.RefreshToken,
		ExpiresAt:    current.ExpiresAt,
		UserID:       current.UserID,
	}
	if d.ExpiresAt.IsZero() {
		d.ExpiresAt = m.now().Add(m.cfg.Lifetime)
	}

	if m.profiles != nil {
		profileID, err := m.profiles.ProfileID(ctx, d.UserID)
		switch {
		case errors.Is(err, ErrProfileNotFound):
			m.logger.DebugContext(ctx, "user has no profile", logger.UserID(d.UserID))
		case err != nil:
			m.logger.WarnContext(ctx, "profile lookup failed", logger.UserID(d.UserID), logger.Error(err))
		default:
			d.ProfileID = profileID
		}
	}

	if err := m.Save(ctx, d); err != nil {
		m.logger.ErrorContext(ctx, "failed to save restored session", logger.Error(err))
		return Data{}, false
	}
	return d, true
}

// IsValid reports whether a session exists and has not reached its expiry.
func (m *Manager) IsValid() bool {
	d, ok := m.Get()
	return ok && m.now().Before(d.ExpiresAt)
}

// NeedsRefresh reports whether the session expires within the refresh threshold.
func (m *Manager) NeedsRefresh() bool {
	d, ok := m.Get()
	return ok && d.ExpiresAt.Sub(m.now()) < m.cfg.RefreshThreshold
}

// Refresh exchanges the refresh token for a new access token and extends the
// session by the full lifetime. Concurrent calls share one exchange. A failed
// refresh leaves the stored session untouched.
func (m *Manager) Refresh(ctx context.Context) bool {
	v, _, _ := m.flight.Do("refresh", func() (any, error) {
		return m.refreshOnce(ctx), nil
	})
	return v.(bool)
}

func (m *Manager) refreshOnce(ctx context.Context) bool {
	m.mu.Lock()
	refresh := m.refresh
	m.mu.Unlock()

	if refresh == nil {
		m.logger.DebugContext(ctx, "no refresh callback registered")
		return false
	}

	d, ok := m.Get()
	if !ok {
		return false
	}
	if d.RefreshToken == "" {
		m.logger.DebugContext(ctx, "session has no refresh token", logger.UserID(d.UserID))
		return false
	}

	token, err := refresh(ctx, d.RefreshToken)
	if err != nil {
		m.logger.WarnContext(ctx, "session refresh failed", logger.UserID(d.UserID), logger.Error(err))
		return false
	}
	if token == "" {
		m.logger.WarnContext(ctx, "session refresh returned no token", logger.UserID(d.UserID))
		return false
	}

	d.Token = token
	d.ExpiresAt = m.now().Add(m.cfg.Lifetime)
	if err := m.Save(ctx, d); err != nil {
		m.logger.ErrorContext(ctx, "failed to save refreshed session", logger.UserID(d.UserID), logger.Error(err))
		return false
	}

	m.logger.InfoContext(ctx, "session refreshed", logger.UserID(d.UserID), slog.Time("expires_at", d.ExpiresAt))
	return true
}

// Clear removes the session, tells other tabs and stops the background work.
func (m *Manager) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range sessionKeys {
		errs = append(errs, m.storage.Remove(key))
	}

	m.publish(ctx, ActionClear, nil)
	m.stop()

	if err := errors.Join(errs...); err != nil {
		return errors.Join(ErrClearSession, err)
	}
	return nil
}

// TimeUntilExpiry returns the remaining lifetime, or zero when there is none.
func (m *Manager) TimeUntilExpiry() time.Duration {
	d, ok := m.Get()
	if !ok {
		return 0
	}
	return max(d.ExpiresAt.Sub(m.now()), 0)
}

// RememberMe returns the stored login preference.
func (m *Manager) RememberMe() bool {
	v, _ := m.storage.Get(KeyRememberMe)
	return v == "true"
}

// SetRememberMe stores the login preference.
func (m *Manager) SetRememberMe(remember bool) error {
	return m.storage.Set(KeyRememberMe, strconv.FormatBool(remember))
}

// ValidateWithProvider asks the auth provider whether the stored token is accepted.
func (m *Manager) ValidateWithProvider(ctx context.Context) bool {
	if m.auth == nil {
		return false
	}
	d, ok := m.Get()
	if !ok {
		return false
	}
	valid, err := m.auth.Validate(ctx, d.Token)
	if err != nil {
		m.logger.WarnContext(ctx, "token validation failed", logger.UserID(d.UserID), logger.Error(err))
		return false
	}
	return valid
}

// Close stops the periodic check and the listener without touching storage.
func (m *Manager) Close() error {
	m.stop()
	m.wg.Wait()
	return nil
}

func (m *Manager) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCheck != nil {
		m.stopCheck()
		m.stopCheck = nil
	}
	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
	}
}

func (m *Manager) publish(ctx context.Context, action Action, d *Data) {
	ev := SyncEvent{Action: action, Data: d, Timestamp: m.now(), Source: m.source}
	if err := m.bc.Broadcast(ctx, broadcast.Message[SyncEvent]{Data: ev}); err != nil {
		m.logger.WarnContext(ctx, "failed to broadcast session change", logger.Action(string(action)), logger.Error(err))
	}
}

func (m *Manager) runCheck(ctx context.Context, gen int) {
	defer m.wg.Done()
	defer m.release(&m.stopCheck, &m.checkGen, gen)

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.NeedsRefresh() && !m.Refresh(ctx) {
				m.logger.WarnContext(ctx, "scheduled session refresh did not succeed")
			}
		}
	}
}

func (m *Manager) listen(ctx context.Context, sub broadcast.Subscriber[SyncEvent], gen int) {
	defer m.wg.Done()
	defer m.release(&m.stopListen, &m.listenGen, gen)
	defer sub.Close()

	for msg := range sub.Receive(ctx) {
		ev := msg.Data
		if ev.Source == m.source {
			continue
		}
		switch ev.Action {
		case ActionClear:
			m.logger.InfoContext(ctx, "session cleared in another tab", slog.String("source", ev.Source))
			m.reload(ev)
		default:
			m.logger.DebugContext(ctx, "session changed in another tab", logger.Action(string(ev.Action)))
		}
	}
}

// release clears the stop handle of an exited loop unless a newer loop owns it.
func (m *Manager) release(stop *context.CancelFunc, current *int, gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *current == gen && *stop != nil {
		(*stop)()
		*stop = nil
	}
}

// defaultReload stops the refresh check; the session it guarded is gone.
func (m *Manager) defaultReload(SyncEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCheck != nil {
		m.stopCheck()
		m.stopCheck = nil
	}
}
