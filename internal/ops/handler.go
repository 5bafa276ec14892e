// AngelaMos | 2026
// handler.go

package ops

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
)

// HandlerConfig wires the pool stats and pings. Any nil func is reported as
// unavailable rather than failing the request.
type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	DBPing     func(ctx context.Context) error
	RedisPing  func(ctx context.Context) error
}

type Handler struct {
	cfg       HandlerConfig
	startedAt time.Time
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/ops", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/stats", h.GetStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	core.OK(w, StatsResponse{
		Database: PoolStatus[DBPoolStats]{
			Healthy: pingOK(ctx, h.cfg.DBPing),
			Stats:   h.dbStats(),
		},
		Redis: PoolStatus[RedisPoolStats]{
			Healthy: pingOK(ctx, h.cfg.RedisPing),
			Stats:   h.redisStats(),
		},
		Runtime: h.runtimeStats(),
	})
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.runtimeStats())
}

func pingOK(ctx context.Context, ping func(context.Context) error) bool {
	if ping == nil {
		return false
	}
	return ping(ctx) == nil
}

func (h *Handler) dbStats() *DBPoolStats {
	if h.cfg.DBStats == nil {
		return nil
	}

	stats := h.cfg.DBStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) redisStats() *RedisPoolStats {
	if h.cfg.RedisStats == nil {
		return nil
	}

	stats := h.cfg.RedisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

func (h *Handler) runtimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		Uptime:       time.Since(h.startedAt).Round(time.Second).String(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		HeapAlloc:    mem.HeapAlloc,
		NumGC:        mem.NumGC,
	}
}

type StatsResponse struct {
	Database PoolStatus[DBPoolStats]    `json:"database"`
	Redis    PoolStatus[RedisPoolStats] `json:"redis"`
	Runtime  RuntimeStats               `json:"runtime"`
}

type PoolStatus[T any] struct {
	Healthy bool `json:"healthy"`
	Stats   *T   `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"maxOpenConnections"`
	OpenConnections    int    `json:"openConnections"`
	InUse              int    `json:"inUse"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"waitCount"`
	WaitDuration       string `json:"waitDuration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"totalConns"`
	IdleConns  uint32 `json:"idleConns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"goVersion"`
	Uptime       string `json:"uptime"`
	NumGoroutine int    `json:"numGoroutine"`
	NumCPU       int    `json:"numCpu"`
	HeapAlloc    uint64 `json:"heapAllocBytes"`
	NumGC        uint32 `json:"numGc"`
}
