package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/statedge/dugout/internal/alert"
	"github.com/statedge/dugout/internal/database"
	"github.com/statedge/dugout/internal/freshness"
)

// Aggregator combines host, database, freshness, and external-dependency
// checks into one cached snapshot, and hands critical findings to the
// alert manager.
type Aggregator struct {
	db         database.Querier
	tracker    *freshness.Tracker
	alerts     *alert.Manager
	probes     []Probe
	thresholds Thresholds
	logger     *slog.Logger
	client     *http.Client
	ttl        time.Duration

	mu       sync.RWMutex
	cached   *Snapshot
	cachedAt time.Time

	now           func() time.Time
	systemMetrics func(context.Context) (SystemMetrics, error)
}

func NewAggregator(
	db database.Querier,
	tracker *freshness.Tracker,
	alerts *alert.Manager,
	probes []Probe,
	thresholds Thresholds,
	ttl time.Duration,
	probeTimeout time.Duration,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		db:            db,
		tracker:       tracker,
		alerts:        alerts,
		probes:        probes,
		thresholds:    thresholds,
		logger:        logger,
		client:        &http.Client{Timeout: probeTimeout},
		ttl:           ttl,
		now:           time.Now,
		systemMetrics: collectSystemMetrics,
	}
}

// Snapshot returns the cached evaluation when it is still inside the TTL,
// refreshing otherwise.
func (g *Aggregator) Snapshot(ctx context.Context) *Snapshot {
	g.mu.RLock()
	if g.cached != nil && g.now().Sub(g.cachedAt) < g.ttl {
		snap := g.cached
		g.mu.RUnlock()
		return snap
	}
	g.mu.RUnlock()

	return g.Refresh(ctx)
}

// Refresh runs every check, caches the result, and raises alerts for
// critical findings.
func (g *Aggregator) Refresh(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Timestamp: g.now(),
		Status:    StatusHealthy,
		Checks:    make(map[string]Check),
	}

	sysMetrics, sysCheck := g.checkSystem(ctx)
	snap.Checks[sysCheck.Name] = sysCheck

	dbCheck, queryLatency := g.checkDatabase(ctx)
	snap.Checks[dbCheck.Name] = dbCheck

	freshCheck := g.checkFreshness(ctx, snap)
	snap.Checks[freshCheck.Name] = freshCheck

	for _, probe := range g.probes {
		check := g.checkProbe(ctx, probe)
		snap.Checks[check.Name] = check
	}

	for _, check := range snap.Checks {
		if worse(check.Status, snap.Status) {
			snap.Status = check.Status
		}
	}

	g.recommend(snap)

	g.mu.Lock()
	g.cached = snap
	g.cachedAt = g.now()
	g.mu.Unlock()

	if g.alerts != nil {
		g.handOff(ctx, snap, sysMetrics, queryLatency)
	}

	return snap
}

func (g *Aggregator) checkSystem(ctx context.Context) (SystemMetrics, Check) {
	check := Check{Name: "system", Status: StatusUnknown}

	m, err := g.systemMetrics(ctx)
	if err != nil {
		check.Error = err.Error()
		return m, check
	}

	check.Metrics = map[string]float64{
		"cpu_percent":    m.CPUPercent,
		"memory_percent": m.MemoryPercent,
		"disk_percent":   m.DiskPercent,
		"load_1m":        m.Load1,
		"uptime_seconds": float64(m.UptimeSecs),
	}

	check.Status = StatusHealthy
	for _, s := range []Status{
		evaluate(m.CPUPercent, g.thresholds.CPUWarning, g.thresholds.CPUCritical),
		evaluate(m.MemoryPercent, g.thresholds.MemoryWarning, g.thresholds.MemoryCritical),
		evaluate(m.DiskPercent, g.thresholds.DiskWarning, g.thresholds.DiskCritical),
	} {
		if worse(s, check.Status) {
			check.Status = s
		}
	}

	return m, check
}

// checkDatabase measures query latency with a trivial round trip and reads
// connection usage from pg_stat_database against the configured ceiling.
func (g *Aggregator) checkDatabase(ctx context.Context) (Check, float64) {
	check := Check{Name: "database", Status: StatusUnknown}

	start := time.Now()
	var one int
	if err := g.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		check.Status = StatusCritical
		check.Error = fmt.Sprintf("ping: %v", err)
		return check, 0
	}
	latency := time.Since(start).Seconds()
	check.LatencyMs = latency * 1000

	var backends, maxConns, liveRows float64
	err := g.db.QueryRow(ctx, `
		SELECT
			(SELECT numbackends FROM pg_stat_database WHERE datname = current_database()),
			(SELECT setting::float FROM pg_settings WHERE name = 'max_connections'),
			(SELECT COALESCE(SUM(n_live_tup), 0) FROM pg_stat_user_tables)
	`).Scan(&backends, &maxConns, &liveRows)
	if err != nil {
		check.Status = StatusWarning
		check.Error = fmt.Sprintf("connection stats: %v", err)
		return check, latency
	}

	var dbBytes float64
	if err := g.db.QueryRow(ctx, `SELECT pg_database_size(current_database())`).Scan(&dbBytes); err != nil {
		g.logger.Warn("database size probe failed", "error", err)
	}

	connPercent := 0.0
	if maxConns > 0 {
		connPercent = backends / maxConns * 100
	}

	check.Metrics = map[string]float64{
		"query_latency_seconds": latency,
		"connections":           backends,
		"max_connections":       maxConns,
		"connection_percent":    connPercent,
		"database_bytes":        dbBytes,
		"live_rows":             liveRows,
	}

	check.Status = evaluate(latency, g.thresholds.QueryWarningSec, g.thresholds.QueryCriticalSec)
	if s := evaluate(connPercent, g.thresholds.ConnsWarning, g.thresholds.ConnsCritical); worse(s, check.Status) {
		check.Status = s
	}

	return check, latency
}

func (g *Aggregator) checkFreshness(ctx context.Context, snap *Snapshot) Check {
	check := Check{Name: "data_freshness", Status: StatusUnknown}

	if g.tracker == nil {
		return check
	}

	summary := g.tracker.Summary(ctx)
	check.Metrics = map[string]float64{
		"healthy_percentage": summary.HealthyPercentage,
		"needs_attention":    float64(summary.NeedsAttention),
	}

	switch summary.OverallStatus {
	case freshness.StatusHealthy:
		check.Status = StatusHealthy
	case freshness.StatusDegraded:
		check.Status = StatusWarning
	case freshness.StatusFailed:
		check.Status = StatusCritical
	}

	for _, m := range summary.Metrics {
		if m.StalenessHours != nil && time.Duration(*m.StalenessHours*float64(time.Hour)) > g.thresholds.StalenessWarning {
			snap.Alerts = append(snap.Alerts,
				fmt.Sprintf("%s has not updated in %.1f hours", m.Table, *m.StalenessHours))
		}
	}

	return check
}

func (g *Aggregator) checkProbe(ctx context.Context, probe Probe) Check {
	check := Check{Name: probe.Name, Status: StatusUnknown}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe.URL, nil)
	if err != nil {
		check.Status = StatusCritical
		check.Error = err.Error()
		return check
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		// Timeouts and refusals both mean the dependency is unreachable.
		check.Status = StatusCritical
		check.Error = err.Error()
		return check
	}
	defer resp.Body.Close()

	latency := time.Since(start).Seconds()
	check.LatencyMs = latency * 1000
	check.Metrics = map[string]float64{
		"latency_seconds": latency,
		"status_code":     float64(resp.StatusCode),
	}

	if resp.StatusCode >= 500 {
		check.Status = StatusCritical
		check.Message = fmt.Sprintf("status %d", resp.StatusCode)
		return check
	}

	check.Status = evaluate(latency, g.thresholds.APIWarningSec, g.thresholds.APICriticalSec)
	return check
}

// recommend turns check results into operator guidance.
func (g *Aggregator) recommend(snap *Snapshot) {
	if sys, ok := snap.Checks["system"]; ok && sys.Metrics != nil {
		if sys.Metrics["disk_percent"] >= g.thresholds.DiskWarning {
			snap.Recommendations = append(snap.Recommendations,
				"disk usage is high: run a cleanup pass or extend the volume")
		}
		if sys.Metrics["cpu_percent"] >= g.thresholds.CPUWarning {
			snap.Recommendations = append(snap.Recommendations,
				"CPU is elevated: check for collectors running outside their schedule")
		}
		if sys.Metrics["memory_percent"] >= g.thresholds.MemoryWarning {
			snap.Recommendations = append(snap.Recommendations,
				"memory is elevated: inspect long-running queries and collector batch sizes")
		}
	}

	if db, ok := snap.Checks["database"]; ok && db.Metrics != nil {
		if db.Metrics["connection_percent"] >= g.thresholds.ConnsWarning {
			snap.Recommendations = append(snap.Recommendations,
				"connection pool is near its ceiling: look for leaked connections")
		}
	}

	if len(snap.Alerts) > 0 {
		snap.Recommendations = append(snap.Recommendations,
			"stale data detected: verify the collection schedules and upstream APIs")
	}
}

// handOff raises alerts for critical checks and gives the manager a chance
// to auto-resolve recovered ones.
func (g *Aggregator) handOff(ctx context.Context, snap *Snapshot, sys SystemMetrics, queryLatency float64) {
	for _, check := range snap.Checks {
		if check.Status != StatusCritical {
			continue
		}

		kind := alert.MetricUnspecified
		message := check.Message
		if message == "" {
			message = check.Error
		}

		switch check.Name {
		case "system":
			// Raise per-metric so recovery can resolve them independently.
			g.raiseSystemAlerts(ctx, sys)
			continue
		case "database":
			kind = alert.MetricLatency
		}

		g.raise(ctx, alert.RaiseParams{
			Name:       fmt.Sprintf("%s check critical", check.Name),
			Severity:   alert.SeverityCritical,
			Source:     check.Name,
			Message:    message,
			MetricKind: kind,
		})
	}

	g.alerts.AutoResolve(ctx, alert.SystemSnapshot{
		CPUPercent:       sys.CPUPercent,
		MemoryPercent:    sys.MemoryPercent,
		DiskPercent:      sys.DiskPercent,
		QueryLatencySecs: queryLatency,
	})
}

func (g *Aggregator) raiseSystemAlerts(ctx context.Context, m SystemMetrics) {
	type metricAlert struct {
		value     float64
		threshold float64
		kind      alert.MetricKind
		name      string
	}

	for _, ma := range []metricAlert{
		{m.CPUPercent, g.thresholds.CPUCritical, alert.MetricCPU, "High CPU Usage"},
		{m.MemoryPercent, g.thresholds.MemoryCritical, alert.MetricMemory, "High Memory Usage"},
		{m.DiskPercent, g.thresholds.DiskCritical, alert.MetricDisk, "High Disk Usage"},
	} {
		if ma.value < ma.threshold {
			continue
		}
		value := ma.value
		threshold := ma.threshold
		g.raise(ctx, alert.RaiseParams{
			Name:        ma.name,
			Severity:    alert.SeverityCritical,
			Source:      "system",
			Message:     fmt.Sprintf("%s at %.1f%% (threshold %.0f%%)", ma.name, value, threshold),
			MetricKind:  ma.kind,
			MetricValue: &value,
			Threshold:   &threshold,
		})
	}
}

func (g *Aggregator) raise(ctx context.Context, p alert.RaiseParams) {
	if _, _, err := g.alerts.Raise(ctx, p); err != nil {
		g.logger.Error("health alert handoff failed", "name", p.Name, "error", err)
	}
}
