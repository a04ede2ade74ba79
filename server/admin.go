package server

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/satkit/cache"
	"github.com/kbukum/satkit/component"
	apperrors "github.com/kbukum/satkit/errors"
	"github.com/kbukum/satkit/logger"
	"github.com/kbukum/satkit/observability"
	"github.com/kbukum/satkit/resilience"
	"github.com/kbukum/satkit/validation"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// breakerName matches the names the registry hands out, e.g. "webhook:hooks.example.com".
var breakerName = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Admin serves the operational endpoints.
type Admin struct {
	Service  string
	Version  string
	Checker  HealthChecker
	Breakers *resilience.BreakerRegistry
	Cache    *cache.Tiered
	Log      *logger.Logger
}

// CacheStats is the body of GET /cache/stats.
type CacheStats struct {
	Local  cache.Stats `json:"local"`
	Remote bool        `json:"remote_enabled"`
}

// Register mounts the admin routes on engine.
func (a *Admin) Register(engine *gin.Engine) {
	engine.GET("/health", a.health)
	engine.GET("/breakers", a.breakers)
	engine.POST("/breakers/:name/reset", a.resetBreaker)
	engine.GET("/cache/stats", a.cacheStats)
}

// health reports 503 only when a component is down. Open breakers and an
// unreachable remote cache degrade the service but keep it serving.
func (a *Admin) health(c *gin.Context) {
	sh := observability.NewServiceHealth(a.Service, a.Version)
	if a.Checker != nil {
		for _, ch := range a.Checker(c.Request.Context()) {
			sh.AddComponent(observability.Health{
				Name:    ch.Name,
				Status:  toHealthStatus(ch.Status),
				Message: ch.Message,
			})
		}
	}
	if a.Breakers != nil {
		details := make(map[string]string)
		for _, s := range a.Breakers.Snapshots() {
			details[s.Name] = s.State.String()
		}
		status := observability.HealthStatusUp
		if a.Breakers.AnyOpen() {
			status = observability.HealthStatusDegraded
		}
		sh.AddComponent(observability.Health{Name: "breakers", Status: status, Details: details})
	}

	code := http.StatusOK
	if sh.Status == observability.HealthStatusDown {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     sh.Status,
		"service":    sh.Service,
		"version":    sh.Version,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": sh.Components,
	})
}

func toHealthStatus(s component.HealthStatus) observability.HealthStatus {
	switch s {
	case component.StatusHealthy:
		return observability.HealthStatusUp
	case component.StatusDegraded:
		return observability.HealthStatusDegraded
	default:
		return observability.HealthStatusDown
	}
}

func (a *Admin) breakers(c *gin.Context) {
	if a.Breakers == nil {
		RespondOK(c, []resilience.BreakerSnapshot{})
		return
	}
	RespondOK(c, a.Breakers.Snapshots())
}

func (a *Admin) resetBreaker(c *gin.Context) {
	name := c.Param("name")
	v := validation.New().
		Required("name", name).
		Matches("name", name, breakerName, "a breaker name")
	if err := v.Validate(); err != nil {
		RespondWithError(c, err)
		return
	}
	if a.Breakers == nil || !a.Breakers.Reset(name) {
		RespondWithError(c, apperrors.NotFound("circuit breaker", name))
		return
	}

	logger.OrGlobal(a.Log).WithContext(c.Request.Context()).Info("circuit breaker reset", map[string]interface{}{
		logger.FieldBreaker: name,
	})
	RespondOK(c, a.Breakers.Get(name).Snapshot())
}

func (a *Admin) cacheStats(c *gin.Context) {
	if a.Cache == nil {
		RespondWithError(c, apperrors.ServiceUnavailable("cache"))
		return
	}
	RespondOK(c, CacheStats{
		Local:  a.Cache.Local().Stats(),
		Remote: a.Cache.HasRemote(),
	})
}
