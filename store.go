package admitsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/admitware/admitsession/storage"
	"github.com/admitware/admitsession/token"
	"github.com/admitware/admitsession/transport"
)

// Store owns the single authoritative session state for the process and
// mediates every read and write of the persisted token slot and the outbound
// Authorization header.
//
// A Store starts in the loading state and settles exactly once through
// [Store.Restore]; thereafter it transitions between anonymous and
// authenticated through [Store.Login] and [Store.Logout] indefinitely.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	cfg       Config
	slot      storage.Slot
	transport *transport.Authorized
	logger    *zap.Logger
	audit     *auditDispatcher
	metrics   *Metrics
	now       func() time.Time

	restoreOnce sync.Once

	mu          sync.RWMutex
	user        *token.User
	loading     bool
	subscribers []chan SessionState
}

// Close stops the audit dispatcher, draining buffered events.
func (s *Store) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
}

// Transport returns the authorized HTTP transport whose bearer header this
// store owns. Screens use it for every backend call.
func (s *Store) Transport() *transport.Authorized {
	if s == nil {
		return nil
	}
	return s.transport
}

// State returns a snapshot of the current session state. The returned user
// is a copy; mutating it does not affect the store.
func (s *Store) State() SessionState {
	if s == nil {
		return SessionState{Loading: true}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return SessionState{
		Authenticated: s.user != nil,
		User:          s.user.Clone(),
		Loading:       s.loading,
	}
}

// Subscribe registers a listener for state snapshots published after every
// transition. Publishing never blocks a transition: when the listener's
// buffer is full the snapshot is dropped and counted. The returned cancel
// function unregisters the listener.
func (s *Store) Subscribe() (<-chan SessionState, func()) {
	if s == nil {
		ch := make(chan SessionState)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan SessionState, s.cfg.SubscriptionBuffer)

	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub == ch {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}

	return ch, cancel
}

func (s *Store) publish() {
	state := s.State()

	s.mu.RLock()
	subs := make([]chan SessionState, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- state:
		default:
			s.metrics.Inc(MetricSubscriberDropped)
		}
	}
}

// Restore settles the initial session state from the persisted token slot.
// It runs at most once per Store; subsequent calls return the current state
// without touching the slot.
//
// Any failure — missing token, malformed or incomplete payload, expired exp,
// or an unreadable slot — fails closed: the slot is cleared best-effort and
// the state settles to anonymous. On success the Authorization header is set
// and the state settles to authenticated with the projected user.
//
// A login or logout that settles the state while the slot read is in flight
// wins: the stale restore result is discarded without touching the slot,
// header, or state.
func (s *Store) Restore(ctx context.Context) SessionState {
	if s == nil {
		return SessionState{Loading: true}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.restoreOnce.Do(func() { s.restore(ctx) })
	return s.State()
}

func (s *Store) restore(ctx context.Context) {
	s.mu.RLock()
	settled := !s.loading
	s.mu.RUnlock()
	if settled {
		// A login already landed before the restore ran.
		return
	}

	raw, err := s.slot.Get(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if s.settleRestore(nil, "") {
				s.metrics.Inc(MetricRestoreSuccess)
				s.emitAudit(ctx, EventRestore, nil, nil)
			}
			return
		}
		s.logger.Warn("session restore: slot read failed", zap.Error(err))
		s.metrics.Inc(MetricSlotError)
		s.failRestore(ctx, err)
		return
	}

	payload, err := token.Decode(raw)
	if err != nil {
		s.failRestore(ctx, err)
		return
	}
	if payload.ExpiredAt(s.now()) {
		s.failRestore(ctx, token.ErrTokenExpired)
		return
	}

	user := payload.User()
	if !s.settleRestore(user, raw) {
		return
	}
	s.metrics.Inc(MetricRestoreSuccess)
	s.emitAudit(ctx, EventRestore, user, nil)
}

// settleRestore commits a restore outcome. The slot read runs outside the
// lock, so a login or logout may settle the state while it is in flight;
// in that case the stale result is discarded, the Authorization header is
// left alone, and settleRestore reports false.
func (s *Store) settleRestore(user *token.User, raw string) bool {
	s.mu.Lock()
	if !s.loading {
		s.mu.Unlock()
		return false
	}
	if user != nil {
		s.transport.SetToken(raw)
	}
	s.user = user
	s.loading = false
	s.mu.Unlock()

	s.publish()
	return true
}

// failRestore clears the persisted token (fail-closed) and settles the state
// to anonymous. If a login settled the state while the slot read was in
// flight, the failure is stale: the slot, header, and state are left alone.
// The slot delete runs under the lock so a concurrent login cannot commit a
// token between the settled check and the delete.
func (s *Store) failRestore(ctx context.Context, cause error) {
	s.mu.Lock()
	if !s.loading {
		s.mu.Unlock()
		return
	}
	if err := s.slot.Delete(ctx); err != nil {
		s.logger.Warn("session restore: slot delete failed", zap.Error(err))
		s.metrics.Inc(MetricSlotError)
	}
	s.transport.ClearToken()
	s.user = nil
	s.loading = false
	s.mu.Unlock()

	s.publish()
	s.metrics.Inc(MetricRestoreFailure)
	s.emitAudit(ctx, EventRestoreFailed, nil, cause)
}

// Login validates the raw token and, on success, persists it, installs the
// Authorization header, and replaces the in-memory user. The new user is
// returned to the caller.
//
// Validation failures surface the specific kind — [ErrMalformedToken],
// [ErrIncompleteToken], [ErrTokenExpired] — and slot write failures surface
// [ErrTokenPersistFailed]. A failed login never regresses an existing valid
// session: state, slot, and header are untouched on any error.
func (s *Store) Login(ctx context.Context, raw string) (*token.User, error) {
	if s == nil {
		return nil, ErrStoreNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := token.Decode(raw)
	if err != nil {
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, EventLoginFailed, nil, err)
		return nil, err
	}
	if payload.ExpiredAt(s.now()) {
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, EventLoginFailed, payload.User(), token.ErrTokenExpired)
		return nil, token.ErrTokenExpired
	}

	if err := s.slot.Set(ctx, raw); err != nil {
		s.logger.Error("login: token persist failed", zap.Error(err))
		s.metrics.Inc(MetricSlotError)
		s.metrics.Inc(MetricLoginFailure)
		s.emitAudit(ctx, EventLoginFailed, payload.User(), err)
		return nil, fmt.Errorf("%w: %v", ErrTokenPersistFailed, err)
	}

	user := payload.User()
	s.transport.SetToken(raw)

	s.mu.Lock()
	s.user = user
	s.loading = false
	s.mu.Unlock()

	s.publish()
	s.metrics.Inc(MetricLoginSuccess)
	s.emitAudit(ctx, EventLogin, user, nil)

	return user.Clone(), nil
}

// Logout transitions to anonymous unconditionally: the slot is cleared
// best-effort (failures are logged, never surfaced), the Authorization
// header is removed, and the in-memory user is dropped. Logout is idempotent
// and safe to call concurrently; it never fails from the caller's
// perspective.
func (s *Store) Logout(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.slot.Delete(ctx); err != nil {
		s.logger.Warn("logout: slot delete failed", zap.Error(err))
		s.metrics.Inc(MetricSlotError)
	}
	s.transport.ClearToken()

	s.mu.Lock()
	previous := s.user
	s.user = nil
	s.loading = false
	s.mu.Unlock()

	s.publish()

	if previous != nil {
		s.metrics.Inc(MetricLogout)
		s.emitAudit(ctx, EventLogout, previous, nil)
	}
}

// MetricsSnapshot returns a copy of all transition counters.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

// AuditDropped returns the number of audit events discarded due to a full
// dispatcher buffer.
func (s *Store) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

func (s *Store) emitAudit(ctx context.Context, eventType string, u *token.User, cause error) {
	if s.audit == nil {
		return
	}

	event := AuditEvent{
		EventID:   uuid.NewString(),
		Timestamp: s.now(),
		EventType: eventType,
		Success:   cause == nil,
	}
	if u != nil {
		event.UserID = u.ID
		event.Email = u.Email
		event.Role = string(u.Role)
	}
	if cause != nil {
		event.Error = cause.Error()
	}

	s.audit.Emit(ctx, event)
}
