// AngelaMos | 2026
// handler_test.go

package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func passthrough(next http.Handler) http.Handler { return next }

func TestGetStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		DBStats: func() sql.DBStats {
			return sql.DBStats{MaxOpenConnections: 25, OpenConnections: 3, InUse: 1, Idle: 2}
		},
		RedisStats: func() *redis.PoolStats {
			return &redis.PoolStats{Hits: 7, TotalConns: 4}
		},
		DBPing:    func(context.Context) error { return nil },
		RedisPing: func(context.Context) error { return errors.New("down") },
	})

	r := chi.NewRouter()
	h.RegisterRoutes(r, passthrough)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ops/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !resp.Database.Healthy {
		t.Error("database should be healthy")
	}
	if resp.Redis.Healthy {
		t.Error("redis should be unhealthy")
	}
	if resp.Database.Stats == nil || resp.Database.Stats.MaxOpenConnections != 25 {
		t.Errorf("database stats = %+v", resp.Database.Stats)
	}
	if resp.Redis.Stats == nil || resp.Redis.Stats.Hits != 7 {
		t.Errorf("redis stats = %+v", resp.Redis.Stats)
	}
	if resp.Runtime.GoVersion == "" {
		t.Error("runtime go version missing")
	}
}

func TestGetStats_Unconfigured(t *testing.T) {
	h := NewHandler(HandlerConfig{})

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/ops/stats", nil))

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Database.Healthy || resp.Redis.Healthy {
		t.Error("unconfigured pings should report unhealthy")
	}
	if resp.Database.Stats != nil || resp.Redis.Stats != nil {
		t.Error("unconfigured stats should be omitted")
	}
}
