package logger

import (
	"sort"
	"sync"
)

// Component logger names.
const (
	ComponentCache       = "cache"
	ComponentBreaker     = "breaker"
	ComponentDatabase    = "database"
	ComponentDBExecutor  = "db-executor"
	ComponentRedis       = "redis"
	ComponentTransaction = "transaction"
	ComponentWebhook     = "webhook"
	ComponentServer      = "server"
)

// DefaultComponents are the component loggers seeded by RegisterDefaults
// when it is called without names.
var DefaultComponents = []string{
	ComponentCache,
	ComponentBreaker,
	ComponentDatabase,
	ComponentDBExecutor,
	ComponentRedis,
	ComponentTransaction,
	ComponentWebhook,
	ComponentServer,
}

var components = struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register stores the logger used for a component.
func Register(name string, l *Logger) {
	components.mu.Lock()
	components.loggers[name] = l
	components.mu.Unlock()
}

// Get returns the registered logger for a component, or the global logger
// tagged with name when none is registered.
func Get(name string) *Logger {
	components.mu.RLock()
	l, ok := components.loggers[name]
	components.mu.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// For returns l tagged with name, or the registered component logger when
// l is nil.
func For(l *Logger, name string) *Logger {
	if l != nil {
		return l.WithComponent(name)
	}
	return Get(name)
}

// RegisterDefaults tags the global logger once per component and registers
// the result. It must run after Init so the loggers carry the configured
// level and format.
func RegisterDefaults(names ...string) {
	if len(names) == 0 {
		names = DefaultComponents
	}
	global := GetGlobalLogger()
	for _, name := range names {
		Register(name, global.WithComponent(name))
	}
}

// Registered lists the registered component names in order.
func Registered() []string {
	components.mu.RLock()
	defer components.mu.RUnlock()
	names := make([]string, 0, len(components.loggers))
	for name := range components.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
