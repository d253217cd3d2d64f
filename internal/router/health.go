package router

import (
	"maps"
	"sync"
	"time"
)

// HealthTracker owns one circuit breaker per service id. A nil tracker
// allows every call, which is how the gateway runs with breakers disabled.
type HealthTracker struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	failureThreshold      int
	recoveryProbeInterval time.Duration
}

func NewHealthTracker(failureThreshold int, recoveryProbeInterval time.Duration) *HealthTracker {
	return &HealthTracker{
		breakers:              make(map[string]*CircuitBreaker),
		failureThreshold:      failureThreshold,
		recoveryProbeInterval: recoveryProbeInterval,
	}
}

// Breaker returns (or lazily creates) the circuit breaker for a service.
func (ht *HealthTracker) Breaker(serviceID string) *CircuitBreaker {
	ht.mu.RLock()
	cb, ok := ht.breakers[serviceID]
	ht.mu.RUnlock()
	if ok {
		return cb
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()
	if cb, ok := ht.breakers[serviceID]; ok {
		return cb
	}
	cb = NewCircuitBreaker(ht.failureThreshold, ht.recoveryProbeInterval)
	ht.breakers[serviceID] = cb
	return cb
}

func (ht *HealthTracker) Allow(serviceID string) bool {
	if ht == nil {
		return true
	}
	return ht.Breaker(serviceID).Allow()
}

func (ht *HealthTracker) RecordSuccess(serviceID string) {
	if ht == nil {
		return
	}
	ht.Breaker(serviceID).RecordSuccess()
}

func (ht *HealthTracker) RecordFailure(serviceID string) {
	if ht == nil {
		return
	}
	ht.Breaker(serviceID).RecordFailure()
}

// Release frees the half-open slot of a call that ended without an outcome.
func (ht *HealthTracker) Release(serviceID string) {
	if ht == nil {
		return
	}
	ht.Breaker(serviceID).Release()
}

// Forget drops the breaker of a removed or re-configured service.
func (ht *HealthTracker) Forget(serviceID string) {
	if ht == nil {
		return
	}
	ht.mu.Lock()
	delete(ht.breakers, serviceID)
	ht.mu.Unlock()
}

// States snapshots the state of every known breaker.
func (ht *HealthTracker) States() map[string]CircuitState {
	if ht == nil {
		return nil
	}
	ht.mu.RLock()
	breakers := maps.Clone(ht.breakers)
	ht.mu.RUnlock()

	out := make(map[string]CircuitState, len(breakers))
	for id, cb := range breakers {
		out[id] = cb.State()
	}
	return out
}
