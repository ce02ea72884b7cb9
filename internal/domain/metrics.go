package domain

// LedgerMetrics is returned by GET /v1/metrics/ledger.
type LedgerMetrics struct {
	CacheHits          int64   `json:"cache_hits"`
	CacheMisses        int64   `json:"cache_misses"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
	Invalidations      int64   `json:"invalidations"`
	MutationsSucceeded int64   `json:"mutations_succeeded"`
	MutationsFailed    int64   `json:"mutations_failed"`
	BusyRejections     int64   `json:"busy_rejections"`
	DiscardedResponses int64   `json:"discarded_responses"`
	ExternalErrors     int64   `json:"external_errors"`
	Period             string  `json:"period"`
}
