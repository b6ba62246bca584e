// Package health exposes process liveness over HTTP, complementing the
// Status Cache's push-based worker heartbeat (spec.md §4.5) with a pull
// surface a load balancer or orchestrator can probe directly. CPU/mem
// detection is grounded in night-slayer18-skeenode's
// pkg/executor/core.go::detectTotalMemory, which reaches for
// github.com/shirou/gopsutil/v3 rather than runtime.MemStats.
package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger is satisfied by any dependency whose connectivity should gate
// readiness (the Store's *gorm.DB via a thin wrapper, the Cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker reports process health, backed by the store and cache
// connections it's constructed with.
type Checker struct {
	deps map[string]Pinger
}

// New builds a Checker over named dependencies (e.g. "store", "cache").
func New(deps map[string]Pinger) *Checker {
	return &Checker{deps: deps}
}

// Handler returns the gin.HandlerFunc for GET /healthz: 200 with a
// dependency/resource snapshot when every dependency pings successfully,
// 503 otherwise.
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()

		deps := make(gin.H, len(c.deps))
		healthy := true
		for name, pinger := range c.deps {
			if err := pinger.Ping(reqCtx); err != nil {
				deps[name] = err.Error()
				healthy = false
			} else {
				deps[name] = "ok"
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}

		ctx.JSON(status, gin.H{
			"status":       map[bool]string{true: "ok", false: "degraded"}[healthy],
			"dependencies": deps,
			"resources":    snapshot(),
		})
	}
}

type resourceSnapshot struct {
	NumGoroutine int     `json:"num_goroutine"`
	CPUPercent   float64 `json:"cpu_percent"`
	MemTotalMB   uint64  `json:"mem_total_mb"`
	MemUsedMB    uint64  `json:"mem_used_mb"`
}

func snapshot() resourceSnapshot {
	s := resourceSnapshot{NumGoroutine: runtime.NumGoroutine()}

	if v, err := mem.VirtualMemory(); err == nil {
		s.MemTotalMB = v.Total / 1024 / 1024
		s.MemUsedMB = v.Used / 1024 / 1024
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	return s
}
