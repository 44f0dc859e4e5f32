package admitsession

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/admitware/admitsession/storage"
	"github.com/admitware/admitsession/transport"
)

// Builder assembles a [Store]. A token slot is required; every other
// collaborator has a working default.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config    Config
	slot      storage.Slot
	transport *transport.Authorized
	logger    *zap.Logger
	sink      AuditSink
	clock     func() time.Time

	built bool
}

// New creates a [Builder] with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithSlot sets the persisted token slot. Required.
func (b *Builder) WithSlot(slot storage.Slot) *Builder {
	b.slot = slot
	return b
}

// WithTransport sets the authorized HTTP transport. Defaults to a fresh
// [transport.Authorized] over http.DefaultTransport.
func (b *Builder) WithTransport(tr *transport.Authorized) *Builder {
	b.transport = tr
	return b
}

// WithLogger sets the logger. Defaults to [zap.NewNop].
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink used when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides the time source. Tests use this to pin expiry checks.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration and constructs the [Store] in its
// initial loading state. Build may be called once per Builder.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.slot == nil {
		return nil, errors.New("token slot is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	if b.transport == nil {
		b.transport = transport.NewAuthorized(nil)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.config.SubscriptionBuffer == 0 {
		b.config.SubscriptionBuffer = defaultConfig().SubscriptionBuffer
	}

	b.built = true

	return &Store{
		cfg:       b.config,
		slot:      b.slot,
		transport: b.transport,
		logger:    b.logger,
		audit:     newAuditDispatcher(b.config.Audit, b.sink),
		metrics:   newMetrics(b.config.Metrics),
		now:       b.clock,
		loading:   true,
	}, nil
}
