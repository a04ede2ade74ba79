package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/satkit/component"
	"github.com/kbukum/satkit/config"
	"github.com/kbukum/satkit/logger"
)

type testConfig struct {
	config.BaseConfig `mapstructure:",squash"`
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.calls, ",")
}

type mockComponent struct {
	name     string
	startErr error
	health   component.HealthStatus
	rec      *recorder
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	m.rec.add("start:" + m.name)
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	m.rec.add("stop:" + m.name)
	return nil
}
func (m *mockComponent) Health(context.Context) component.Health {
	status := m.health
	if status == "" {
		status = component.StatusHealthy
	}
	return component.Health{Name: m.name, Status: status}
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	app, err := NewApp(&testConfig{BaseConfig: config.BaseConfig{Name: "satkit"}}, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "satkit" {
		t.Errorf("expected name satkit, got %q", app.Name)
	}
	if app.Version != "dev" {
		t.Errorf("expected default version dev, got %q", app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected default environment, got %q", app.Cfg.Environment)
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	_, err := NewApp(&testConfig{}, WithLogger(logger.Nop()))
	if err == nil {
		t.Fatal("expected validation error for missing name")
	}
}

func TestApp_RunStopsInReverseOrder(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(&mockComponent{name: "database", rec: rec})
	_ = app.RegisterComponent(&mockComponent{name: "redis", rec: rec})
	app.OnStart(func(context.Context) error { rec.add("hook:start"); return nil })
	app.OnStop(func(context.Context) error { rec.add("hook:stop"); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "start:database,start:redis,hook:start,hook:stop,stop:redis,stop:database"
	if got := rec.String(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestApp_StartFailureStopsStarted(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(&mockComponent{name: "database", rec: rec})
	_ = app.RegisterComponent(&mockComponent{name: "redis", startErr: errors.New("refused"), rec: rec})

	err := app.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected start error, got %v", err)
	}

	want := "start:database,start:redis,stop:database"
	if got := rec.String(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestApp_ReadyCheck(t *testing.T) {
	app := newTestApp(t)
	rec := &recorder{}
	_ = app.RegisterComponent(&mockComponent{name: "database", rec: rec})
	_ = app.RegisterComponent(&mockComponent{name: "redis", health: component.StatusDegraded, rec: rec})

	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis=degraded") {
		t.Errorf("expected redis degraded, got %v", err)
	}
}
