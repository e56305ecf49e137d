package utubettl

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

// defaultHorizon is the practical-infinity ttl/ttr used when a queue is
// constructed without explicit defaults: 292 years, close to the longest
// span a time.Duration can hold (500 years would overflow it).
const defaultHorizon = 292 * 365 * 24 * time.Hour

// options holds Queue configuration, resolved from the defaults below
// overlaid with any Option values passed to New.
type options struct {
	ttl    time.Duration
	ttr    time.Duration
	limits map[string]int

	onTaskChange OnTaskChange
	logger       Logger

	// promoteOnTTLExpiry resolves spec section 9's open question: whether
	// ttl-expiry of a READY task should also call unblock_one. Defaults to
	// false, matching the literally-described timekeeper behaviour.
	promoteOnTTLExpiry bool
}

// Option configures a Queue at construction time, grounded on
// microbatch.BatcherConfig / eventloop.LoopOption's functional-options
// pattern.
type Option func(*options)

// WithDefaultTTL sets the queue-wide default time-to-live, used by Put when
// PutOptions.TTL is zero. Defaults to defaultHorizon, 292 years (practical
// infinity).
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithDefaultTTR sets the queue-wide default time-to-run, used by Put when
// PutOptions.TTR is zero. Defaults to the default ttl.
func WithDefaultTTR(ttr time.Duration) Option {
	return func(o *options) { o.ttr = ttr }
}

// WithLimit sets the per-micro-tube concurrency limit for utube. Any value
// less than 1 causes New to return an error (spec section 6/7:
// configuration errors are fatal at construction).
func WithLimit(utube string, limit int) Option {
	return func(o *options) { o.limits[utube] = limit }
}

// WithOnTaskChange installs the event callback invoked after every state
// change (spec section 4.4). Passing nil (or omitting this option) disables
// the callback.
func WithOnTaskChange(cb OnTaskChange) Option {
	return func(o *options) { o.onTaskChange = cb }
}

// WithLogger installs a structured Logger. Defaults to NoOpLogger.
func WithLogger(logger Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPromoteOnTTLExpiry enables the optional behaviour spec section 9
// permits an implementer to add: when a READY task is removed by ttl
// expiry, also call unblock_one for its micro-tube. Defaults to false.
func WithPromoteOnTTLExpiry(enabled bool) Option {
	return func(o *options) { o.promoteOnTTLExpiry = enabled }
}

// Queue is an in-memory utubettl queue. Construct with New; call Close when
// done to stop the background timekeeper goroutine.
type Queue struct {
	mu    sync.Mutex
	store *store
	limits *limitAccountant

	defaultTTL time.Duration
	defaultTTR time.Duration

	onTaskChange OnTaskChange
	logger       Logger

	promoteOnTTLExpiry bool

	wakeCh chan struct{}
	timer  *time.Timer

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// New constructs a Queue and starts its timekeeper goroutine. Invalid limit
// values (per WithLimit, anything < 1) are a configuration error, returned
// rather than panicked, since they are detectable purely from caller input
// (spec section 7).
func New(opts ...Option) (*Queue, error) {
	cfg := &options{
		ttl:    defaultHorizon,
		limits: make(map[string]int),
		logger: NoOpLogger{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	if cfg.ttr <= 0 {
		cfg.ttr = cfg.ttl
	}

	for utube, limit := range cfg.limits {
		if limit < 1 {
			return nil, fmt.Errorf("utubettl: invalid limit %d for utube %q: must be >= 1", limit, utube)
		}
	}

	q := &Queue{
		store:              newStore(),
		limits:             newLimitAccountant(maps.Clone(cfg.limits)),
		defaultTTL:         cfg.ttl,
		defaultTTR:         cfg.ttr,
		onTaskChange:       cfg.onTaskChange,
		logger:             cfg.logger,
		promoteOnTTLExpiry: cfg.promoteOnTTLExpiry,
		wakeCh:             make(chan struct{}, 1),
		timer:              time.NewTimer(defaultHorizon),
		done:               make(chan struct{}),
		stopped:            make(chan struct{}),
	}
	// the timer is reset on the first scan; draining here avoids a spurious
	// immediate wakeup racing the first real deadline.
	if !q.timer.Stop() {
		<-q.timer.C
	}

	go q.runTimekeeper()

	return q, nil
}

// wake signals the timekeeper that its scan horizon may have shrunk. The
// send is non-blocking and deduplicating: a pending, unconsumed wake is as
// good as two.
func (q *Queue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

// Close stops the timekeeper goroutine and waits for it to exit. Safe to
// call more than once, or never (a Queue that is simply dropped just leaks
// its goroutine, same caveat as a context.CancelFunc never called).
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.stopped)
	})
	<-q.done
	return nil
}
