package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrBreakerOpen is returned while a breaker rejects calls.
var ErrBreakerOpen = eris.New("breaker open")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker. Default: 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before one probe call
	// is let through. Default: 30s.
	Cooldown time.Duration

	// OnOpen runs when the breaker opens.
	OnOpen func(failures int)
}

// Breaker stops calling a service that keeps failing. After Cooldown a
// single probe is allowed; its success closes the breaker, its failure
// reopens it.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	probing  bool

	now func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the breaker is open. Every error returned by fn
// counts as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.now().Sub(b.openedAt) < b.cfg.Cooldown
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	if b.probing || b.now().Sub(b.openedAt) < b.cfg.Cooldown {
		return eris.Wrapf(ErrBreakerOpen, "after %d consecutive failures", b.failures)
	}
	b.probing = true
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err == nil {
		b.failures = 0
		b.open = false
		return
	}

	b.failures++
	if b.open || b.failures >= b.cfg.FailureThreshold {
		if !b.open && b.cfg.OnOpen != nil {
			b.cfg.OnOpen(b.failures)
		}
		b.open = true
		b.openedAt = b.now()
	}
}
