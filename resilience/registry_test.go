package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBreakerRegistry_GetReturnsSameInstance(t *testing.T) {
	r := NewBreakerRegistry(DefaultCircuitBreakerConfig(""))

	var wg sync.WaitGroup
	got := make([]*CircuitBreaker, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Get("db")
		}(i)
	}
	wg.Wait()

	for i := range got {
		if got[i] != got[0] {
			t.Fatal("expected one breaker per name")
		}
	}
	if got[0].Name() != "db" {
		t.Errorf("expected name db, got %s", got[0].Name())
	}
}

func TestBreakerRegistry_IsolatesNames(t *testing.T) {
	r := NewBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Minute})

	_ = r.Execute("webhook:a", func() error { return errBoom })

	if r.Get("webhook:a").State() != StateOpen {
		t.Error("expected webhook:a open")
	}
	if r.Get("webhook:b").State() != StateClosed {
		t.Error("expected webhook:b closed")
	}
	if !r.AnyOpen() {
		t.Error("expected AnyOpen true")
	}

	err := r.Execute("webhook:a", func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerRegistry_ResetAndSnapshots(t *testing.T) {
	r := NewBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Minute})
	r.Get("zeta")
	_ = r.Execute("alpha", func() error { return errBoom })

	snaps := r.Snapshots()
	if len(snaps) != 2 || snaps[0].Name != "alpha" || snaps[1].Name != "zeta" {
		t.Fatalf("expected sorted snapshots, got %+v", snaps)
	}
	if snaps[0].State != StateOpen {
		t.Errorf("expected alpha open, got %s", snaps[0].State)
	}

	if !r.Reset("alpha") {
		t.Error("expected reset of known breaker to succeed")
	}
	if r.Reset("missing") {
		t.Error("expected reset of unknown breaker to fail")
	}
	if r.AnyOpen() {
		t.Error("expected all breakers closed after reset")
	}
}

func TestBreakerRegistry_GetWithConfiguresOnCreate(t *testing.T) {
	r := NewBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Minute})
	errIgnored := errors.New("bad request")

	cb := r.GetWith("webhook:a", func(c *CircuitBreakerConfig) {
		c.IsFailure = func(err error) bool { return !errors.Is(err, errIgnored) }
	})
	_ = cb.Execute(func() error { return errIgnored })
	if cb.State() != StateClosed {
		t.Errorf("expected ignored error to leave breaker closed, got %s", cb.State())
	}

	again := r.GetWith("webhook:a", func(c *CircuitBreakerConfig) {
		t.Error("configure should not run for an existing breaker")
	})
	if again != cb {
		t.Error("expected the existing breaker")
	}

	_ = cb.Execute(func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Errorf("expected counted error to open breaker, got %s", cb.State())
	}
}
