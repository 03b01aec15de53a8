package provider

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCooldown is how long a provider is skipped after a fatal error.
const DefaultCooldown = 60 * time.Second

// HealthRegistry tracks per-provider cooldowns shared by all concurrent requests.
// Each entry is a cooldown-until timestamp updated last-write-wins.
type HealthRegistry struct {
	cooldown time.Duration
	now      func() time.Time
	entries  sync.Map // name -> *atomic.Int64 (unix nanos)
}

// ProviderStatus is a point-in-time view of one provider's health.
type ProviderStatus struct {
	Name          string        `json:"name"`
	Available     bool          `json:"available"`
	CooldownUntil time.Time     `json:"cooldownUntil,omitzero"`
	Remaining     time.Duration `json:"remaining"`
}

// NewHealthRegistry creates a registry with the given cooldown window.
func NewHealthRegistry(cooldown time.Duration) *HealthRegistry {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &HealthRegistry{cooldown: cooldown, now: time.Now}
}

func (h *HealthRegistry) entry(name string) *atomic.Int64 {
	if v, ok := h.entries.Load(name); ok {
		return v.(*atomic.Int64)
	}
	v, _ := h.entries.LoadOrStore(name, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Register makes names visible in Status before they are ever tripped.
func (h *HealthRegistry) Register(names ...string) {
	for _, n := range names {
		h.entry(n)
	}
}

// Available reports whether name may be called now.
func (h *HealthRegistry) Available(name string) bool {
	return h.now().UnixNano() >= h.entry(name).Load()
}

// Trip starts a cooldown window for name.
func (h *HealthRegistry) Trip(name string) {
	h.entry(name).Store(h.now().Add(h.cooldown).UnixNano())
}

// Reset clears any cooldown on name.
func (h *HealthRegistry) Reset(name string) {
	h.entry(name).Store(0)
}

// Remaining returns how long name stays in cooldown.
func (h *HealthRegistry) Remaining(name string) time.Duration {
	d := time.Duration(h.entry(name).Load() - h.now().UnixNano())
	if d < 0 {
		return 0
	}
	return d
}

// Status returns a snapshot of every known provider, sorted by name.
func (h *HealthRegistry) Status() []ProviderStatus {
	now := h.now()
	var out []ProviderStatus
	h.entries.Range(func(k, v any) bool {
		until := v.(*atomic.Int64).Load()
		st := ProviderStatus{Name: k.(string), Available: now.UnixNano() >= until}
		if !st.Available {
			st.CooldownUntil = time.Unix(0, until)
			st.Remaining = st.CooldownUntil.Sub(now)
		}
		out = append(out, st)
		return true
	})
	slices.SortFunc(out, func(a, b ProviderStatus) int { return strings.Compare(a.Name, b.Name) })
	return out
}
