package metrics

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStats is a point-in-time view of a connection pool.
type PoolStats struct {
	Open     int   `json:"open_connections"`
	InUse    int   `json:"in_use"`
	Idle     int   `json:"idle"`
	MaxOpen  int   `json:"max_open_connections"`
	WaitHits int64 `json:"wait_count"`
}

func SQLPoolStats(db *sql.DB) PoolStats {
	if db == nil {
		return PoolStats{}
	}
	s := db.Stats()
	return PoolStats{
		Open:     s.OpenConnections,
		InUse:    s.InUse,
		Idle:     s.Idle,
		MaxOpen:  s.MaxOpenConnections,
		WaitHits: s.WaitCount,
	}
}

func PgxPoolStats(pool *pgxpool.Pool) PoolStats {
	if pool == nil {
		return PoolStats{}
	}
	s := pool.Stat()
	return PoolStats{
		Open:     int(s.TotalConns()),
		InUse:    int(s.AcquiredConns()),
		Idle:     int(s.IdleConns()),
		MaxOpen:  int(s.MaxConns()),
		WaitHits: s.EmptyAcquireCount(),
	}
}
