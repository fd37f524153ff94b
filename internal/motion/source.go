// Package motion delivers accelerometer samples and turns them into step events.
package motion

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrCapabilityUnavailable reports that no motion sensor can be used for tracking.
	ErrCapabilityUnavailable = errors.New("motion capability unavailable")
	// ErrPermissionDenied reports that the user refused motion access. It matches ErrCapabilityUnavailable.
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrCapabilityUnavailable)
)

// Sample is one acceleration-including-gravity reading in m/s².
type Sample struct {
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
	Z  float64   `json:"z"`
	At time.Time `json:"ts"`
}

// Magnitude returns the length of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Unsubscribe detaches a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// Source publishes motion samples to a single listener.
type Source interface {
	Subscribe(onSample func(Sample)) (Unsubscribe, error)
}

// FakeSource is an in-process Source driven by Emit.
type FakeSource struct {
	mu          sync.Mutex
	unavailable bool
	denied      bool
	listener    func(Sample)
	subscribes  int
}

// NewFakeSource returns an available source with permission granted.
func NewFakeSource() *FakeSource {
	return &FakeSource{}
}

// SetUnavailable makes subsequent subscriptions fail with ErrCapabilityUnavailable.
func (f *FakeSource) SetUnavailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = v
}

// SetPermissionDenied makes subsequent subscriptions fail with ErrPermissionDenied.
func (f *FakeSource) SetPermissionDenied(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied = v
}

// Subscribe implements Source.
func (f *FakeSource) Subscribe(onSample func(Sample)) (Unsubscribe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		return nil, ErrCapabilityUnavailable
	}
	if f.denied {
		return nil, ErrPermissionDenied
	}
	f.listener = onSample
	f.subscribes++

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.listener = nil
		})
	}, nil
}

// Emit delivers a sample to the current listener and reports whether one was attached.
func (f *FakeSource) Emit(s Sample) bool {
	f.mu.Lock()
	listener := f.listener
	f.mu.Unlock()

	if listener == nil {
		return false
	}
	listener(s)
	return true
}

// Subscribed reports whether a listener is attached.
func (f *FakeSource) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener != nil
}

// Subscriptions returns how many successful subscriptions have been made.
func (f *FakeSource) Subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

// UnavailableSource always fails to subscribe. It backs sessions when no sensor stream is configured.
type UnavailableSource struct{}

// Subscribe implements Source.
func (UnavailableSource) Subscribe(func(Sample)) (Unsubscribe, error) {
	return nil, ErrCapabilityUnavailable
}
