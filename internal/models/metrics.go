package models

import "time"

// SystemMetrics is a JSON snapshot of process counters served next to the
// Prometheus endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	DBQueryCount             uint64            `json:"db_query_count"`
	AverageDBQueryDurationMs float64           `json:"average_db_query_duration_ms"`
	Generations              uint64            `json:"generations"`
	SessionsPlaced           uint64            `json:"sessions_placed"`
	SessionsShort            uint64            `json:"sessions_short"`
	Moves                    map[string]uint64 `json:"moves"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
