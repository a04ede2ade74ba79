package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kbukum/satkit/cache"
	"github.com/kbukum/satkit/component"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/resilience"
)

type healthBody struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Components []struct {
		Name    string            `json:"name"`
		Status  string            `json:"status"`
		Details map[string]string `json:"details"`
	} `json:"components"`
}

type errorBody struct {
	Error struct {
		Code       string         `json:"code"`
		ErrorClass string         `json:"error_class"`
		Status     int            `json:"status"`
		Retryable  bool           `json:"retryable"`
		Details    map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T, admin *Admin) *Server {
	t.Helper()
	s := New(Config{Port: 0}, logger.Nop())
	admin.Log = logger.Nop()
	admin.Register(s.Engine())
	return s
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
}

func healthy(names ...string) HealthChecker {
	return func(context.Context) []component.Health {
		out := make([]component.Health, 0, len(names))
		for _, n := range names {
			out = append(out, component.Health{Name: n, Status: component.StatusHealthy})
		}
		return out
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		openBreak  bool
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all healthy",
			checker:    healthy("database", "redis"),
			wantCode:   http.StatusOK,
			wantStatus: "up",
		},
		{
			name: "redis unreachable degrades",
			checker: func(context.Context) []component.Health {
				return []component.Health{
					{Name: "database", Status: component.StatusHealthy},
					{Name: "redis", Status: component.StatusDegraded, Message: "dial tcp: refused"},
				}
			},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name: "database down",
			checker: func(context.Context) []component.Health {
				return []component.Health{{Name: "database", Status: component.StatusUnhealthy}}
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "down",
		},
		{
			name:       "open breaker degrades",
			checker:    healthy("database"),
			openBreak:  true,
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := resilience.NewBreakerRegistry(resilience.CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Minute})
			if tt.openBreak {
				_ = reg.Execute("webhook:hooks.example.com", func() error { return errors.New("boom") })
			}
			s := newTestServer(t, &Admin{Service: "satkit", Checker: tt.checker, Breakers: reg})

			rr := do(t, s, http.MethodGet, "/health")
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			var body healthBody
			decode(t, rr, &body)
			if body.Status != tt.wantStatus {
				t.Errorf("expected status %s, got %s", tt.wantStatus, body.Status)
			}
			if body.Service != "satkit" {
				t.Errorf("expected service satkit, got %s", body.Service)
			}
		})
	}
}

func TestHealth_ReportsBreakerStates(t *testing.T) {
	reg := resilience.NewBreakerRegistry(resilience.CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Minute})
	_ = reg.Execute("webhook:a", func() error { return errors.New("boom") })
	reg.Get("database")
	s := newTestServer(t, &Admin{Service: "satkit", Breakers: reg})

	var body healthBody
	decode(t, do(t, s, http.MethodGet, "/health"), &body)

	for _, c := range body.Components {
		if c.Name != "breakers" {
			continue
		}
		if c.Details["webhook:a"] != "open" {
			t.Errorf("expected webhook:a open, got %q", c.Details["webhook:a"])
		}
		if c.Details["database"] != "closed" {
			t.Errorf("expected database closed, got %q", c.Details["database"])
		}
		return
	}
	t.Fatal("expected a breakers component")
}

func TestBreakers_ListAndReset(t *testing.T) {
	reg := resilience.NewBreakerRegistry(resilience.CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Minute})
	_ = reg.Execute("webhook:a", func() error { return errors.New("boom") })
	s := newTestServer(t, &Admin{Breakers: reg})

	var list struct {
		Data []struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"data"`
	}
	decode(t, do(t, s, http.MethodGet, "/breakers"), &list)
	if len(list.Data) != 1 || list.Data[0].State != "open" {
		t.Fatalf("expected one open breaker, got %+v", list.Data)
	}

	rr := do(t, s, http.MethodPost, "/breakers/webhook:a/reset")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if reg.Get("webhook:a").State() != resilience.StateClosed {
		t.Error("expected breaker closed after reset")
	}
}

func TestBreakers_ResetErrors(t *testing.T) {
	s := newTestServer(t, &Admin{Breakers: resilience.NewBreakerRegistry(resilience.DefaultCircuitBreakerConfig(""))})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"unknown breaker", "/breakers/nope/reset", http.StatusNotFound, "NOT_FOUND"},
		{"invalid name", "/breakers/bad%20name/reset", http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, tt.path)
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			var body errorBody
			decode(t, rr, &body)
			if body.Error.Code != tt.wantErr {
				t.Errorf("expected code %s, got %s", tt.wantErr, body.Error.Code)
			}
			if body.Error.ErrorClass != "application" || body.Error.Status != tt.wantCode {
				t.Errorf("expected application class with status %d, got %s/%d", tt.wantCode, body.Error.ErrorClass, body.Error.Status)
			}
		})
	}
}

func TestCacheStats(t *testing.T) {
	local := cache.NewStore(cache.WithCapacity(10))
	tiered := cache.NewTiered(local, cache.Config{})
	tiered.Write(context.Background(), "a", 1, time.Minute)
	tiered.Write(context.Background(), "b", 2, time.Minute)
	s := newTestServer(t, &Admin{Cache: tiered})

	var body struct {
		Data CacheStats `json:"data"`
	}
	decode(t, do(t, s, http.MethodGet, "/cache/stats"), &body)

	if body.Data.Local.Size != 2 {
		t.Errorf("expected size 2, got %d", body.Data.Local.Size)
	}
	if body.Data.Local.Capacity != 10 {
		t.Errorf("expected capacity 10, got %d", body.Data.Local.Capacity)
	}
	if body.Data.Remote {
		t.Error("expected remote disabled")
	}
}

func TestServer_StartStop(t *testing.T) {
	s := New(Config{Host: "127.0.0.1", Port: 0}, logger.Nop())
	(&Admin{Checker: healthy("database")}).Register(s.Engine())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("unexpected request error: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("unexpected stop error: %v", err)
	}
}
