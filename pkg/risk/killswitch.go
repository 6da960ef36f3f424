package risk

import (
	"sync"
	"sync/atomic"
	"time"
)

// KillSwitch is a one-way flag. Once tripped it stays tripped for the life
// of the process. IsTripped is lock-free and safe from any goroutine.
type KillSwitch struct {
	tripped atomic.Bool

	mu        sync.Mutex
	reason    string
	trippedAt time.Time
	done      chan struct{}
}

func NewKillSwitch() *KillSwitch {
	return &KillSwitch{done: make(chan struct{})}
}

// Trip sets the switch. Only the first call records its reason; it returns
// true if this call did the tripping.
func (k *KillSwitch) Trip(reason string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.tripped.Load() {
		return false
	}
	k.reason = reason
	k.trippedAt = time.Now()
	k.tripped.Store(true)
	close(k.done)
	return true
}

func (k *KillSwitch) IsTripped() bool { return k.tripped.Load() }

// Done is closed when the switch trips.
func (k *KillSwitch) Done() <-chan struct{} { return k.done }

func (k *KillSwitch) Reason() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reason
}

func (k *KillSwitch) TrippedAt() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.trippedAt
}
