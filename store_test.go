package admitsession

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/admitware/admitsession/storage"
	"github.com/admitware/admitsession/token"
)

var testNow = time.Unix(1_900_000_000, 0)

func mintToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	encode := func(v any) string {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal segment: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(data)
	}
	header := encode(map[string]string{"alg": "HS256", "typ": "JWT"})
	return header + "." + encode(claims) + ".c2lnbmF0dXJl"
}

func bankToken(t *testing.T, expOffset time.Duration) string {
	t.Helper()
	return mintToken(t, map[string]any{
		"id":    int64(7),
		"email": "a@b.com",
		"role":  "bank",
		"exp":   testNow.Add(expOffset).Unix(),
	})
}

func applicantToken(t *testing.T, expOffset time.Duration) string {
	t.Helper()
	return mintToken(t, map[string]any{
		"id":    int64(42),
		"email": "applicant@example.com",
		"role":  "applicant",
		"exp":   testNow.Add(expOffset).Unix(),
	})
}

func newTestStore(t *testing.T, slot storage.Slot) *Store {
	t.Helper()
	if slot == nil {
		slot = storage.NewMemorySlot()
	}
	store, err := New().
		WithSlot(slot).
		WithClock(func() time.Time { return testNow }).
		Build()
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// failingSlot wraps a MemorySlot and fails selected operations.
type failingSlot struct {
	inner      *storage.MemorySlot
	failGet    bool
	failSet    bool
	failDelete bool
}

func (f *failingSlot) Get(ctx context.Context) (string, error) {
	if f.failGet {
		return "", storage.ErrSlotUnavailable
	}
	return f.inner.Get(ctx)
}

func (f *failingSlot) Set(ctx context.Context, token string) error {
	if f.failSet {
		return storage.ErrSlotUnavailable
	}
	return f.inner.Set(ctx, token)
}

func (f *failingSlot) Delete(ctx context.Context) error {
	if f.failDelete {
		return storage.ErrSlotUnavailable
	}
	return f.inner.Delete(ctx)
}

func TestStoreStartsLoading(t *testing.T) {
	store := newTestStore(t, nil)

	state := store.State()
	if !state.Loading {
		t.Fatal("expected loading state before restore")
	}
	if state.Authenticated || state.User != nil {
		t.Fatal("expected unauthenticated state before restore")
	}
}

func TestLoginWithValidTokenAuthenticates(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	store := newTestStore(t, slot)

	raw := bankToken(t, time.Hour)
	user, err := store.Login(ctx, raw)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != 7 || user.Email != "a@b.com" || user.Role != token.RoleBank {
		t.Fatalf("unexpected user: %+v", user)
	}

	state := store.State()
	if !state.Authenticated || state.User == nil {
		t.Fatal("expected authenticated state after login")
	}
	if state.Loading {
		t.Fatal("login must settle the loading flag")
	}
	if state.User.Email != "a@b.com" {
		t.Fatalf("unexpected state user: %+v", state.User)
	}

	persisted, err := slot.Get(ctx)
	if err != nil {
		t.Fatalf("slot read failed: %v", err)
	}
	if persisted != raw {
		t.Fatal("login must persist the raw token")
	}
	if store.Transport().Token() != raw {
		t.Fatal("login must install the bearer token")
	}
}

func TestLoginErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"two segments", "a.b", ErrMalformedToken},
		{"four segments", "a.b.c.d", ErrMalformedToken},
		{"payload not base64", "eyJhbGciOiJIUzI1NiJ9.!!.sig", ErrMalformedToken},
		{"missing fields", func() string {
			claims := map[string]any{"id": int64(1), "exp": testNow.Add(time.Hour).Unix()}
			return mintTokenFor(claims)
		}(), ErrIncompleteToken},
		{"expired", "", ErrTokenExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot := storage.NewMemorySlot()
			store := newTestStore(t, slot)

			raw := tc.raw
			if tc.want == ErrTokenExpired {
				raw = bankToken(t, -10*time.Second)
			}

			if _, err := store.Login(context.Background(), raw); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if _, err := slot.Get(context.Background()); !errors.Is(err, storage.ErrNotFound) {
				t.Fatal("failed login must not persist a token")
			}
			if store.State().Authenticated {
				t.Fatal("failed login must not authenticate")
			}
		})
	}
}

// mintTokenFor is a non-failing variant for table construction.
func mintTokenFor(claims map[string]any) string {
	encode := func(v any) string {
		data, _ := json.Marshal(v)
		return base64.RawURLEncoding.EncodeToString(data)
	}
	header := encode(map[string]string{"alg": "HS256", "typ": "JWT"})
	return header + "." + encode(claims) + ".c2lnbmF0dXJl"
}

func TestFailedLoginDoesNotRegressExistingSession(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	store := newTestStore(t, slot)

	original := bankToken(t, time.Hour)
	if _, err := store.Login(ctx, original); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Re-authentication with a stale token must be rejected without touching
	// the existing valid session.
	if _, err := store.Login(ctx, applicantToken(t, -time.Minute)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	state := store.State()
	if !state.Authenticated || state.User == nil || state.User.Role != token.RoleBank {
		t.Fatalf("existing session regressed: %+v", state)
	}
	persisted, err := slot.Get(ctx)
	if err != nil || persisted != original {
		t.Fatalf("existing token regressed: %q, %v", persisted, err)
	}
	if store.Transport().Token() != original {
		t.Fatal("existing bearer token regressed")
	}
}

func TestLoginPersistFailureKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	slot := &failingSlot{inner: storage.NewMemorySlot()}
	store := newTestStore(t, slot)

	original := bankToken(t, time.Hour)
	if _, err := store.Login(ctx, original); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	slot.failSet = true
	if _, err := store.Login(ctx, applicantToken(t, time.Hour)); !errors.Is(err, ErrTokenPersistFailed) {
		t.Fatalf("expected ErrTokenPersistFailed, got %v", err)
	}

	state := store.State()
	if state.User == nil || state.User.Role != token.RoleBank {
		t.Fatalf("state regressed on persist failure: %+v", state)
	}
	if store.Transport().Token() != original {
		t.Fatal("bearer token regressed on persist failure")
	}
}

func TestLogoutClearsEverythingAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	store := newTestStore(t, slot)

	if _, err := store.Login(ctx, bankToken(t, time.Hour)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	store.Logout(ctx)
	store.Logout(ctx)

	state := store.State()
	if state.Authenticated || state.User != nil {
		t.Fatalf("expected anonymous state, got %+v", state)
	}
	if state.Loading {
		t.Fatal("logout must settle the loading flag")
	}
	if _, err := slot.Get(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatal("logout must delete the persisted token")
	}
	if store.Transport().Token() != "" {
		t.Fatal("logout must clear the bearer token")
	}

	snap := store.MetricsSnapshot()
	if snap.Counters[MetricLogout] != 1 {
		t.Fatalf("expected exactly one logout transition counted, got %d", snap.Counters[MetricLogout])
	}
}

func TestLogoutSwallowsSlotFailure(t *testing.T) {
	ctx := context.Background()
	slot := &failingSlot{inner: storage.NewMemorySlot()}
	store := newTestStore(t, slot)

	if _, err := store.Login(ctx, bankToken(t, time.Hour)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	slot.failDelete = true
	store.Logout(ctx)

	state := store.State()
	if state.Authenticated {
		t.Fatal("logout must reach anonymous even when the slot delete fails")
	}
	if store.Transport().Token() != "" {
		t.Fatal("logout must clear the bearer token even when the slot delete fails")
	}
}

func TestRestoreWithValidPersistedToken(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()

	// A previous process logged in and persisted the token.
	raw := bankToken(t, time.Hour)
	if err := slot.Set(ctx, raw); err != nil {
		t.Fatalf("seed slot: %v", err)
	}

	store := newTestStore(t, slot)
	state := store.Restore(ctx)

	if state.Loading {
		t.Fatal("restore must settle the loading flag")
	}
	if !state.Authenticated || state.User == nil {
		t.Fatal("expected authenticated state after restore")
	}
	if state.User.ID != 7 || state.User.Role != token.RoleBank {
		t.Fatalf("restore produced a different user: %+v", state.User)
	}
	if store.Transport().Token() != raw {
		t.Fatal("restore must install the bearer token")
	}
}

func TestRestoreEmptySlotSettlesAnonymous(t *testing.T) {
	store := newTestStore(t, nil)
	state := store.Restore(context.Background())

	if state.Loading || state.Authenticated || state.User != nil {
		t.Fatalf("expected settled anonymous state, got %+v", state)
	}

	// An empty slot is still a completed restore attempt.
	snap := store.MetricsSnapshot()
	if snap.Counters[MetricRestoreSuccess] != 1 {
		t.Fatalf("expected empty-slot restore counted as success, got %d", snap.Counters[MetricRestoreSuccess])
	}
	if snap.Counters[MetricRestoreFailure] != 0 {
		t.Fatalf("expected no restore failure, got %d", snap.Counters[MetricRestoreFailure])
	}
}

func TestRestoreFailuresClearSlot(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"malformed", "not.a-token"},
		{"incomplete", mintTokenFor(map[string]any{"email": "a@b.com", "role": "bank", "exp": testNow.Add(time.Hour).Unix()})},
		{"expired", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			slot := storage.NewMemorySlot()

			raw := tc.raw
			if tc.name == "expired" {
				raw = mintTokenFor(map[string]any{
					"id": int64(7), "email": "a@b.com", "role": "bank",
					"exp": testNow.Add(-10 * time.Second).Unix(),
				})
			}
			if err := slot.Set(ctx, raw); err != nil {
				t.Fatalf("seed slot: %v", err)
			}

			store := newTestStore(t, slot)
			state := store.Restore(ctx)

			if state.Authenticated || state.Loading {
				t.Fatalf("expected settled anonymous state, got %+v", state)
			}
			if _, err := slot.Get(ctx); !errors.Is(err, storage.ErrNotFound) {
				t.Fatal("failed restore must delete the persisted token")
			}
			if store.Transport().Token() != "" {
				t.Fatal("failed restore must not install a bearer token")
			}
		})
	}
}

func TestRestoreRunsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	if err := slot.Set(ctx, bankToken(t, time.Hour)); err != nil {
		t.Fatalf("seed slot: %v", err)
	}

	store := newTestStore(t, slot)
	first := store.Restore(ctx)

	// A token written behind the store's back must not be picked up by a
	// second Restore call.
	if err := slot.Set(ctx, applicantToken(t, time.Hour)); err != nil {
		t.Fatalf("reseed slot: %v", err)
	}
	second := store.Restore(ctx)

	if first.User == nil || second.User == nil {
		t.Fatal("expected authenticated states")
	}
	if second.User.ID != first.User.ID {
		t.Fatal("second restore must return the settled state without re-reading the slot")
	}
}

func TestRestoreAfterLoginKeepsLoginState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	if _, err := store.Login(ctx, bankToken(t, time.Hour)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	state := store.Restore(ctx)
	if state.User == nil || state.User.Role != token.RoleBank {
		t.Fatalf("restore clobbered a settled login: %+v", state)
	}
}

// blockingSlot captures the slot value at the start of Get, then parks until
// released, exposing the window where a restore's read is in flight while
// other transitions land.
type blockingSlot struct {
	inner   *storage.MemorySlot
	entered chan struct{}
	release chan struct{}
}

func newBlockingSlot(inner *storage.MemorySlot) *blockingSlot {
	return &blockingSlot{
		inner:   inner,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingSlot) Get(ctx context.Context) (string, error) {
	raw, err := b.inner.Get(ctx)
	close(b.entered)
	<-b.release
	return raw, err
}

func (b *blockingSlot) Set(ctx context.Context, token string) error {
	return b.inner.Set(ctx, token)
}

func (b *blockingSlot) Delete(ctx context.Context) error {
	return b.inner.Delete(ctx)
}

func TestRestoreAbandonedWhenLoginSettlesMidRead(t *testing.T) {
	cases := []struct {
		name      string
		seedStale bool // put an expired token in the slot before the store starts
	}{
		{"empty slot", false},
		{"stale expired token", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			inner := storage.NewMemorySlot()
			if tc.seedStale {
				if err := inner.Set(ctx, bankToken(t, -time.Hour)); err != nil {
					t.Fatalf("seed slot: %v", err)
				}
			}
			slot := newBlockingSlot(inner)
			store := newTestStore(t, slot)

			done := make(chan struct{})
			go func() {
				store.Restore(ctx)
				close(done)
			}()
			<-slot.entered

			// The restore has read the pre-login slot value and is parked;
			// a login now lands and settles the state.
			fresh := bankToken(t, time.Hour)
			if _, err := store.Login(ctx, fresh); err != nil {
				t.Fatalf("login failed: %v", err)
			}

			close(slot.release)
			<-done

			state := store.State()
			if !state.Authenticated || state.User == nil || state.User.Role != token.RoleBank {
				t.Fatalf("stale restore clobbered a completed login: %+v", state)
			}
			if got := store.Transport().Token(); got != fresh {
				t.Fatalf("stale restore touched the bearer token: %q", got)
			}
			persisted, err := inner.Get(ctx)
			if err != nil || persisted != fresh {
				t.Fatalf("stale restore touched the slot: %q, %v", persisted, err)
			}

			snap := store.MetricsSnapshot()
			if snap.Counters[MetricRestoreSuccess] != 0 || snap.Counters[MetricRestoreFailure] != 0 {
				t.Fatalf("abandoned restore must not count as an outcome: %+v", snap.Counters)
			}
		})
	}
}

func TestNilStoreFailsClosed(t *testing.T) {
	ctx := context.Background()
	var store *Store

	if state := store.State(); !state.Loading || state.Authenticated {
		t.Fatalf("expected loading state from nil store, got %+v", state)
	}
	if _, err := store.Login(ctx, "a.b.c"); !errors.Is(err, ErrStoreNotReady) {
		t.Fatalf("expected ErrStoreNotReady, got %v", err)
	}
	if tr := store.Transport(); tr != nil {
		t.Fatal("expected nil transport from nil store")
	}

	ch, cancel := store.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected a closed subscription channel from nil store")
	}

	store.Logout(ctx)
	store.Restore(ctx)
	store.Close()
}

func TestSubscribeObservesTransitions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	ch, cancel := store.Subscribe()
	defer cancel()

	if _, err := store.Login(ctx, bankToken(t, time.Hour)); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	select {
	case state := <-ch:
		if !state.Authenticated || state.User == nil || state.User.Role != token.RoleBank {
			t.Fatalf("expected authenticated snapshot, got %+v", state)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot after login")
	}

	store.Logout(ctx)

	select {
	case state := <-ch:
		if state.Authenticated || state.User != nil {
			t.Fatalf("expected anonymous snapshot, got %+v", state)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot after logout")
	}
}

func TestMetricsCountTransitions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	if _, err := store.Login(ctx, bankToken(t, time.Hour)); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := store.Login(ctx, "a.b"); err == nil {
		t.Fatal("expected malformed login to fail")
	}
	store.Logout(ctx)

	snap := store.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 login success, got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 login failure, got %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricLogout] != 1 {
		t.Fatalf("expected 1 logout, got %d", snap.Counters[MetricLogout])
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	ctx := context.Background()
	sink := NewChannelSink(16)
	cfg := defaultConfig()
	cfg.Audit = AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: false}

	store, err := New().
		WithConfig(cfg).
		WithSlot(storage.NewMemorySlot()).
		WithAuditSink(sink).
		WithClock(func() time.Time { return testNow }).
		Build()
	if err != nil {
		t.Fatalf("build store: %v", err)
	}

	if _, err := store.Login(ctx, bankToken(t, time.Hour)); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	store.Logout(ctx)
	store.Close()

	want := []string{EventLogin, EventLogout}
	for _, expected := range want {
		select {
		case event := <-sink.Events():
			if event.EventType != expected {
				t.Fatalf("expected event %s, got %s", expected, event.EventType)
			}
			if event.EventID == "" {
				t.Fatal("audit event must carry an event ID")
			}
			if !event.Success {
				t.Fatalf("expected success event, got %+v", event)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing audit event %s", expected)
		}
	}
}

func TestBuilderRequiresSlot(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("expected build without slot to fail")
	}
}

func TestBuilderRejectsReuse(t *testing.T) {
	b := New().WithSlot(storage.NewMemorySlot())
	if _, err := b.Build(); err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second build to fail")
	}
}

func TestStateInvariantAuthenticatedMatchesUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, nil)

	check := func(state SessionState) {
		t.Helper()
		if state.Authenticated != (state.User != nil) {
			t.Fatalf("invariant violated: %+v", state)
		}
	}

	check(store.State())
	check(store.Restore(ctx))
	if _, err := store.Login(ctx, bankToken(t, time.Hour)); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	check(store.State())
	store.Logout(ctx)
	check(store.State())
}
