package navgate

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
)

// PermissionState is the capability view routing decisions consume. Loading
// starts true and flips false once the first resolution lands; protected
// zones keep showing the loading state until then.
type PermissionState struct {
	Loading      bool            `json:"loading"`
	Capabilities map[string]bool `json:"capabilities,omitempty"`
}

// Can reports whether the named capability resolved to enabled.
func (p PermissionState) Can(key string) bool {
	if p.Capabilities == nil {
		return false
	}
	return p.Capabilities[key]
}

// Equal compares permission states by value.
func (p PermissionState) Equal(other PermissionState) bool {
	if p.Loading != other.Loading {
		return false
	}
	if len(p.Capabilities) != len(other.Capabilities) {
		return false
	}
	for key, val := range p.Capabilities {
		if other.Capabilities[key] != val {
			return false
		}
	}
	return true
}

func (p PermissionState) clone() PermissionState {
	if p.Capabilities == nil {
		return p
	}
	caps := make(map[string]bool, len(p.Capabilities))
	for key, val := range p.Capabilities {
		caps[key] = val
	}
	p.Capabilities = caps
	return p
}

type permissionSubscriber struct {
	id int
	fn func(PermissionState)
}

// PermissionStore tracks capability flags and their loading state, notifying
// subscribers on change.
type PermissionStore struct {
	mu      sync.RWMutex
	state   PermissionState
	subs    []permissionSubscriber
	nextSub int

	logger   Logger
	provider LoggerProvider
}

// NewPermissionStore creates a store in the loading state.
func NewPermissionStore() *PermissionStore {
	p := &PermissionStore{
		state: PermissionState{Loading: true},
	}
	p.provider, p.logger = ResolveLogger("navgate.permission_store", nil, nil)
	return p
}

// WithLogger sets the logger used by the store.
func (p *PermissionStore) WithLogger(logger Logger) *PermissionStore {
	if logger != nil {
		_, p.logger = ResolveLogger("navgate.permission_store", nil, logger)
	}
	return p
}

// WithLoggerProvider resolves a scoped logger from the provider.
func (p *PermissionStore) WithLoggerProvider(provider LoggerProvider) *PermissionStore {
	if provider != nil {
		p.provider, p.logger = ResolveLogger("navgate.permission_store", provider, p.logger)
	}
	return p
}

// Snapshot returns a copy of the current permission state.
func (p *PermissionStore) Snapshot() PermissionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.clone()
}

// Subscribe registers fn to run after every state change, in subscription
// order. The returned function removes the subscription.
func (p *PermissionStore) Subscribe(fn func(PermissionState)) func() {
	if fn == nil {
		return func() {}
	}

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs = append(p.subs, permissionSubscriber{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.subs {
			if sub.id == id {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// BeginLoading flips the store back into the loading state, keeping the last
// known capabilities until the refresh resolves.
func (p *PermissionStore) BeginLoading() {
	p.mu.RLock()
	next := p.state.clone()
	p.mu.RUnlock()

	next.Loading = true
	p.apply(next)
}

// FinishLoading installs the resolved capabilities and clears Loading.
func (p *PermissionStore) FinishLoading(capabilities map[string]bool) {
	caps := make(map[string]bool, len(capabilities))
	for key, val := range capabilities {
		caps[key] = val
	}
	p.apply(PermissionState{Loading: false, Capabilities: caps})
}

// ResolveFromGate queries the feature gate for each capability key and
// installs the results. Keys the gate fails on resolve to disabled; the first
// gate error is returned after the state has still been installed, so a flaky
// gate degrades to conservative permissions instead of a stuck loader.
func (p *PermissionStore) ResolveFromGate(ctx context.Context, featureGate gate.FeatureGate, keys ...string) error {
	p.BeginLoading()

	caps := make(map[string]bool, len(keys))
	var firstErr error

	for _, key := range keys {
		if featureGate == nil {
			caps[key] = false
			continue
		}

		enabled, err := featureGate.Enabled(ctx, key)
		if err != nil {
			p.logger.Warn("permission gate check failed", "key", key, "error", err)
			caps[key] = false
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		caps[key] = enabled
	}

	p.FinishLoading(caps)

	if firstErr != nil {
		return errors.Wrap(firstErr, errors.CategoryExternal, "permission resolution failed").
			WithCode(errors.CodeInternal)
	}
	return nil
}

func (p *PermissionStore) apply(next PermissionState) {
	next = next.clone()

	p.mu.Lock()
	if p.state.Equal(next) {
		p.mu.Unlock()
		return
	}
	p.state = next
	subs := make([]permissionSubscriber, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next.clone())
	}
}
