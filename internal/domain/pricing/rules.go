package pricing

import (
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// Snapshot is an immutable view of the rules active at some instant.
type Snapshot struct {
	Config   *Config
	Version  uint64
	LoadedAt time.Time
}

// Rules holds the active pricing configuration and allows it to be replaced
// atomically. A calculation reads one snapshot at its start and uses it to the
// end, so a concurrent Replace never mixes two rule sets in one breakdown.
type Rules struct {
	current atomic.Pointer[Snapshot]
	now     func() time.Time
}

// NewRules validates cfg and returns Rules serving it.
func NewRules(cfg *Config) (*Rules, error) {
	r := &Rules{now: time.Now}
	if err := r.Replace(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace validates cfg and makes it the active configuration. On validation
// failure the previous configuration stays active.
func (r *Rules) Replace(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil pricing config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "validate pricing config")
	}

	var version uint64 = 1
	if prev := r.current.Load(); prev != nil {
		version = prev.Version + 1
	}
	r.current.Store(&Snapshot{
		Config:   cfg,
		Version:  version,
		LoadedAt: r.now(),
	})
	return nil
}

// Current returns the active configuration.
func (r *Rules) Current() *Config {
	return r.current.Load().Config
}

// Snapshot returns the active configuration with its version metadata.
func (r *Rules) Snapshot() Snapshot {
	return *r.current.Load()
}
