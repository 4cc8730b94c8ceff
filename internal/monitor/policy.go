package monitor

import (
	"sync"
	"time"

	"github.com/Zyldzkie/gas-guard/internal/model"
)

// Policy decides whether a classified reading produces an alert record.
// Safe readings never do. Every Warning or Danger reading produces its
// own record so the store keeps a complete audit trail; the optional
// debounce window suppresses repeats of the same level for the same
// identity and is off by default.
type Policy struct {
	debounce time.Duration
	mu       sync.Mutex
	lastEmit map[string]time.Time
}

func NewPolicy(debounce time.Duration) *Policy {
	return &Policy{
		debounce: debounce,
		lastEmit: make(map[string]time.Time),
	}
}

// SetDebounce replaces the debounce window for subsequent readings.
// Used when the operator edits the config of a running process.
func (p *Policy) SetDebounce(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debounce = d
}

func (p *Policy) Debounce() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.debounce
}

func (p *Policy) ShouldEmit(identity string, level model.AlertLevel, now time.Time) bool {
	if level == model.LevelSafe {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounce <= 0 {
		return true
	}
	key := identity + "|" + string(level)
	if ts, ok := p.lastEmit[key]; ok {
		if now.Sub(ts) < p.debounce {
			return false
		}
	}
	p.lastEmit[key] = now
	return true
}
