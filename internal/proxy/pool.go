// Package proxy maintains a scored, persisted pool of outbound proxies.
package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/vidfetch/vidfetch/pkg/safeclient"
)

// DefaultSources are the public proxy-list endpoints polled on refresh.
var DefaultSources = []string{
	"https://api.proxyscrape.com/v2/?request=getproxies&protocol=http&timeout=10000&country=all&ssl=all&anonymity=all",
	"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
	"https://raw.githubusercontent.com/ShiftyTR/Proxy-List/master/http.txt",
}

// Record is one scored proxy endpoint. Persisted as JSON.
type Record struct {
	Endpoint     string    `json:"endpoint"`
	Protocol     string    `json:"protocol"`
	LastUsedAt   time.Time `json:"lastUsedAt"`
	FailureCount uint      `json:"failureCount"`
	SuccessCount uint      `json:"successCount"`
}

// URL returns the full proxy URL, e.g. "http://1.2.3.4:8080".
func (r *Record) URL() string {
	return r.Protocol + "://" + r.Endpoint
}

// Config holds pool configuration.
type Config struct {
	FilePath       string        // persisted pool location
	Sources        []string      // endpoint-list URLs, one endpoint per line
	UpdateInterval time.Duration // refresh when the pool is older than this
	FetchTimeout   time.Duration // per-source fetch timeout
	EvictAfter     uint          // failures before a never-successful proxy is dropped
	QuarantineTTL  time.Duration // how long an evicted endpoint stays excluded
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig(filePath string) Config {
	return Config{
		FilePath:       filePath,
		Sources:        DefaultSources,
		UpdateInterval: time.Hour,
		FetchTimeout:   10 * time.Second,
		EvictAfter:     5,
		QuarantineTTL:  30 * time.Minute,
	}
}

// Pool is a rotating, quality-sorted proxy pool. Selection is round-robin
// over the sorted list rather than strict best-first, so failing proxies
// still get occasional traffic for re-scoring.
type Pool struct {
	mu          sync.Mutex
	cfg         Config
	records     []*Record
	cursor      int
	lastRefresh time.Time

	client       *http.Client
	fetchLimiter *rate.Limiter
	quarantine   *gocache.Cache
}

// New creates a Pool and loads the persisted record set if present.
// Load failures leave the pool empty and are logged, not fatal.
func New(cfg Config) *Pool {
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = time.Hour
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.QuarantineTTL <= 0 {
		cfg.QuarantineTTL = 30 * time.Minute
	}

	p := &Pool{
		cfg:          cfg,
		client:       safeclient.New(cfg.FetchTimeout),
		fetchLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		quarantine:   gocache.New(cfg.QuarantineTTL, 10*time.Minute),
	}
	p.load()
	return p
}

// load reads the persisted record set from disk.
func (p *Pool) load() {
	data, err := os.ReadFile(p.cfg.FilePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to load proxy pool", "path", p.cfg.FilePath, "error", err)
		}
		return
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("Proxy pool file corrupt, starting empty", "path", p.cfg.FilePath, "error", err)
		return
	}

	p.mu.Lock()
	p.records = records
	p.mu.Unlock()

	slog.Info("Proxy pool loaded", "path", p.cfg.FilePath, "size", len(records))
}

// Next selects the next proxy URL, or ok=false when the pool is empty.
// The pool is sorted by ascending failures then descending successes, and
// a rotating cursor walks the sorted order.
func (p *Pool) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.records) == 0 {
		return "", false
	}

	p.sortLocked()

	rec := p.records[p.cursor%len(p.records)]
	rec.LastUsedAt = time.Now().UTC()
	p.cursor = (p.cursor + 1) % len(p.records)

	return rec.URL(), true
}

// ReportSuccess increments the success counter of the record matching the
// given proxy URL and persists the pool.
func (p *Pool) ReportSuccess(proxyURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.findLocked(proxyURL)
	if rec == nil {
		return
	}
	rec.SuccessCount++
	p.persistLocked()
}

// ReportFailure increments the failure counter of the record matching the
// given proxy URL. A record that keeps failing without ever succeeding is
// evicted and its endpoint quarantined so refresh does not re-add it
// immediately.
func (p *Pool) ReportFailure(proxyURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.findLocked(proxyURL)
	if rec == nil {
		return
	}
	rec.FailureCount++

	if p.cfg.EvictAfter > 0 && rec.SuccessCount == 0 && rec.FailureCount >= p.cfg.EvictAfter {
		p.evictLocked(rec)
		slog.Debug("Proxy evicted",
			"endpoint", rec.Endpoint,
			"failures", rec.FailureCount,
		)
	}

	p.persistLocked()
}

// RefreshIfStale refreshes the pool from the configured sources when it is
// empty or older than the update interval. Failures are logged and
// non-fatal; a stale or empty pool is an accepted degraded state.
func (p *Pool) RefreshIfStale(ctx context.Context) {
	p.mu.Lock()
	stale := len(p.records) == 0 || time.Since(p.lastRefresh) > p.cfg.UpdateInterval
	p.mu.Unlock()

	if !stale {
		return
	}
	p.refresh(ctx)
}

// refresh fetches candidate endpoints from every source, merges them into
// the pool, deduplicates, and persists. Network I/O happens outside the
// pool lock.
func (p *Pool) refresh(ctx context.Context) {
	var fetched []*Record
	for _, source := range p.cfg.Sources {
		endpoints, err := p.fetchSource(ctx, source)
		if err != nil {
			slog.Warn("Proxy source fetch failed", "source", source, "error", err)
			continue
		}
		for _, ep := range endpoints {
			fetched = append(fetched, &Record{Endpoint: ep, Protocol: "http"})
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	merged := append(p.records, fetched...)
	seen := make(map[string]bool, len(merged))
	deduped := merged[:0]
	for _, rec := range merged {
		key := rec.Protocol + "|" + rec.Endpoint
		if seen[key] {
			continue
		}
		if _, quarantined := p.quarantine.Get(key); quarantined {
			continue
		}
		seen[key] = true
		deduped = append(deduped, rec)
	}

	p.records = deduped
	p.lastRefresh = time.Now().UTC()
	p.persistLocked()

	slog.Info("Proxy pool refreshed",
		"fetched", len(fetched),
		"size", len(p.records),
	)
}

// fetchSource downloads one endpoint list, one endpoint per line.
func (p *Pool) fetchSource(ctx context.Context, source string) ([]string, error) {
	if err := p.fetchLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var endpoints []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		endpoints = append(endpoints, line)
	}
	return endpoints, scanner.Err()
}

// Size returns the number of records in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Records returns a snapshot copy of the pool.
func (p *Pool) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Record, len(p.records))
	for i, rec := range p.records {
		out[i] = *rec
	}
	return out
}

// sortLocked orders records by ascending failures, then descending
// successes. Caller must hold the mutex.
func (p *Pool) sortLocked() {
	sort.SliceStable(p.records, func(i, j int) bool {
		a, b := p.records[i], p.records[j]
		if a.FailureCount != b.FailureCount {
			return a.FailureCount < b.FailureCount
		}
		return a.SuccessCount > b.SuccessCount
	})
}

// findLocked locates a record by its full proxy URL.
func (p *Pool) findLocked(proxyURL string) *Record {
	for _, rec := range p.records {
		if rec.URL() == proxyURL {
			return rec
		}
	}
	return nil
}

// evictLocked removes a record and quarantines its endpoint.
func (p *Pool) evictLocked(target *Record) {
	kept := p.records[:0]
	for _, rec := range p.records {
		if rec == target {
			continue
		}
		kept = append(kept, rec)
	}
	p.records = kept
	if p.cursor >= len(p.records) {
		p.cursor = 0
	}
	p.quarantine.Set(target.Protocol+"|"+target.Endpoint, struct{}{}, gocache.DefaultExpiration)
}

// persistLocked rewrites the persisted record set wholesale. Caller must
// hold the mutex. Failures are logged, not fatal.
func (p *Pool) persistLocked() {
	if p.cfg.FilePath == "" {
		return
	}

	data, err := json.MarshalIndent(p.records, "", "  ")
	if err != nil {
		slog.Error("Failed to encode proxy pool", "error", err)
		return
	}

	if err := writeFileAtomic(p.cfg.FilePath, data); err != nil {
		slog.Warn("Failed to persist proxy pool", "path", p.cfg.FilePath, "error", err)
	}
}
