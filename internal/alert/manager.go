package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ManagerConfig governs alert lifecycle behavior.
type ManagerConfig struct {
	MaintenanceMode     bool
	DuplicateWindow     time.Duration
	StaleAfter          time.Duration
	RetentionDays       int
	AutoRecoveryEnabled bool
	CPURecoveryPercent  float64
	MemRecoveryPercent  float64
	DiskRecoveryPercent float64
	LatencyRecoverySecs float64
}

// RaiseParams are the inputs for raising a new alert.
type RaiseParams struct {
	Name        string
	Severity    Severity
	Source      string
	Message     string
	MetricKind  MetricKind
	MetricValue *float64
	Threshold   *float64
}

// SystemSnapshot carries the current readings recovery evaluation runs
// against.
type SystemSnapshot struct {
	CPUPercent       float64
	MemoryPercent    float64
	DiskPercent      float64
	QueryLatencySecs float64
}

// keyedMutex hands out one mutex per alert id, so two concurrent
// transitions on the same alert serialize without blocking the rest.
// Entries are reference-counted and dropped when the last holder
// releases, so resolved ids never accumulate in the map.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

// lock blocks until the id's mutex is held and returns the release func.
func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// Manager owns the alert lifecycle: raise, suppress duplicates, acknowledge,
// resolve, auto-recover, and purge. Every mutation is persisted immediately
// so a crash never loses an open alert.
type Manager struct {
	store    *Store
	notifier *Notifier
	logger   *slog.Logger
	cfg      ManagerConfig

	mu     sync.RWMutex
	active map[string]*Alert

	ids keyedMutex

	now func() time.Time
}

// NewManager builds a manager and reloads open alerts from the store, so a
// restart picks up exactly where the previous process left off.
func NewManager(store *Store, notifier *Notifier, logger *slog.Logger, cfg ManagerConfig) (*Manager, error) {
	m := &Manager{
		store:    store,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		active:   make(map[string]*Alert),
		now:      time.Now,
	}

	open, err := store.LoadOpen()
	if err != nil {
		return nil, fmt.Errorf("reload open alerts: %w", err)
	}
	for _, a := range open {
		m.active[a.ID] = a
	}

	if len(open) > 0 {
		logger.Info("reloaded open alerts", "count", len(open))
	}

	return m, nil
}

// SetMaintenanceMode toggles alert suppression for planned work.
func (m *Manager) SetMaintenanceMode(on bool) {
	m.mu.Lock()
	m.cfg.MaintenanceMode = on
	m.mu.Unlock()

	m.logger.Info("maintenance mode changed", "enabled", on)
}

// Raise creates a new alert unless it is suppressed. Suppression happens in
// maintenance mode, and when an open alert with the same name and source was
// raised inside the duplicate window. Returns the alert and whether it was
// actually raised.
func (m *Manager) Raise(ctx context.Context, p RaiseParams) (*Alert, bool, error) {
	now := m.now()

	m.mu.Lock()
	if m.cfg.MaintenanceMode {
		m.mu.Unlock()
		m.logger.Info("alert suppressed by maintenance mode",
			"name", p.Name,
			"source", p.Source,
		)
		return nil, false, nil
	}

	for _, existing := range m.active {
		if existing.Name == p.Name && existing.Source == p.Source &&
			now.Sub(existing.CreatedAt) < m.cfg.DuplicateWindow {
			dup := existing.clone()
			m.mu.Unlock()
			m.logger.Debug("duplicate alert suppressed",
				"name", p.Name,
				"source", p.Source,
				"existing_id", dup.ID,
			)
			return dup, false, nil
		}
	}

	a := &Alert{
		ID:          newID(p.Name, p.Source, now),
		Name:        p.Name,
		Severity:    p.Severity,
		State:       StateActive,
		Source:      p.Source,
		Message:     p.Message,
		MetricKind:  p.MetricKind,
		MetricValue: p.MetricValue,
		Threshold:   p.Threshold,
		CreatedAt:   now,
	}
	m.active[a.ID] = a
	snap := a.clone()
	m.mu.Unlock()

	unlock := m.ids.lock(a.ID)
	defer unlock()

	if err := m.store.Save(snap); err != nil {
		return nil, false, fmt.Errorf("raise alert: %w", err)
	}

	m.logger.Warn("alert raised",
		"id", snap.ID,
		"name", snap.Name,
		"severity", snap.Severity,
		"source", snap.Source,
	)

	// The notifier works on the clone; its delivery bookkeeping is copied
	// back onto the live alert before persisting.
	if m.notifier != nil && m.notifier.Notify(ctx, snap) {
		m.mu.Lock()
		a.NotificationCount = snap.NotificationCount
		a.LastNotification = copyPtr(snap.LastNotification)
		persisted := a.clone()
		m.mu.Unlock()
		if err := m.store.Save(persisted); err != nil {
			m.logger.Error("persist notification state failed", "id", snap.ID, "error", err)
		}
	}

	return snap, true, nil
}

// Acknowledge moves an ACTIVE alert to ACKNOWLEDGED. Returns false for
// unknown ids and for alerts not in the ACTIVE state.
func (m *Manager) Acknowledge(id, by string) bool {
	unlock := m.ids.lock(id)
	defer unlock()

	m.mu.Lock()
	a, ok := m.active[id]
	if !ok || a.State != StateActive {
		m.mu.Unlock()
		return false
	}

	now := m.now()
	a.State = StateAcknowledged
	a.AcknowledgedAt = &now
	a.AcknowledgedBy = by
	snap := a.clone()
	m.mu.Unlock()

	if err := m.store.Save(snap); err != nil {
		m.logger.Error("persist acknowledge failed", "id", id, "error", err)
	}

	m.logger.Info("alert acknowledged", "id", id, "by", by)
	return true
}

// Resolve closes an open alert, optionally recording a resolution note.
// Returns false for unknown ids and for alerts already resolved.
func (m *Manager) Resolve(ctx context.Context, id, by, note string) bool {
	unlock := m.ids.lock(id)
	defer unlock()

	m.mu.Lock()
	a, ok := m.active[id]
	if !ok || !a.Open() {
		m.mu.Unlock()
		return false
	}

	now := m.now()
	a.State = StateResolved
	a.ResolvedAt = &now
	a.ResolvedBy = by
	if note != "" {
		a.Notes = append(a.Notes, note)
	}
	// Once out of the active set the struct is owned by this call; only
	// clones of it circulate outside.
	delete(m.active, id)
	m.mu.Unlock()

	if err := m.store.Save(a); err != nil {
		m.logger.Error("persist resolve failed", "id", id, "error", err)
	}

	m.logger.Info("alert resolved", "id", id, "by", by)

	if m.notifier != nil {
		m.notifier.NotifyResolved(ctx, a)
		if err := m.store.Save(a); err != nil {
			m.logger.Error("persist notification state failed", "id", id, "error", err)
		}
	}

	return true
}

// AutoResolve resolves open metric alerts whose underlying reading has
// recovered below the configured recovery line. Dispatches on the alert's
// metric kind; alerts without a kind are never auto-resolved.
func (m *Manager) AutoResolve(ctx context.Context, snap SystemSnapshot) int {
	if !m.cfg.AutoRecoveryEnabled {
		return 0
	}

	m.mu.RLock()
	var candidates []string
	for id, a := range m.active {
		recovered := false
		switch a.Kind() {
		case MetricCPU:
			recovered = snap.CPUPercent < m.cfg.CPURecoveryPercent
		case MetricMemory:
			recovered = snap.MemoryPercent < m.cfg.MemRecoveryPercent
		case MetricDisk:
			recovered = snap.DiskPercent < m.cfg.DiskRecoveryPercent
		case MetricLatency:
			recovered = snap.QueryLatencySecs < m.cfg.LatencyRecoverySecs
		}
		if recovered {
			candidates = append(candidates, id)
		}
	}
	m.mu.RUnlock()

	resolved := 0
	for _, id := range candidates {
		if m.Resolve(ctx, id, "auto-recovery", "metric recovered below threshold") {
			resolved++
		}
	}

	if resolved > 0 {
		m.logger.Info("auto-resolved recovered alerts", "count", resolved)
	}
	return resolved
}

// Maintenance is the periodic sweep: flag open alerts that have sat
// unresolved past the stale threshold, and purge resolved alerts past
// retention.
func (m *Manager) Maintenance(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	var flagged []*Alert
	for _, a := range m.active {
		if !a.Stale && now.Sub(a.CreatedAt) > m.cfg.StaleAfter {
			a.Stale = true
			flagged = append(flagged, a.clone())
		}
	}
	m.mu.Unlock()

	for _, a := range flagged {
		m.logger.Warn("alert stale", "id", a.ID, "name", a.Name, "age", now.Sub(a.CreatedAt))
		if err := m.store.Save(a); err != nil {
			m.logger.Error("persist stale flag failed", "id", a.ID, "error", err)
		}
	}

	cutoff := now.AddDate(0, 0, -m.cfg.RetentionDays)
	purged, err := m.store.PurgeResolvedBefore(cutoff)
	if err != nil {
		m.logger.Error("alert purge failed", "error", err)
		return
	}
	if purged > 0 {
		m.logger.Info("purged resolved alerts", "count", purged, "cutoff", cutoff)
	}
}

// Active returns deep copies of the open alerts, unordered.
func (m *Manager) Active() []*Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a.clone())
	}
	return out
}

// Get returns a deep copy of one open alert by id.
func (m *Manager) Get(id string) (*Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.active[id]
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// History returns alerts from the trailing window in any state, newest
// first. A zero window means no time bound.
func (m *Manager) History(window time.Duration, limit int) ([]*Alert, error) {
	var since time.Time
	if window > 0 {
		since = m.now().Add(-window)
	}
	return m.store.History(since, limit)
}

// Summarize reports the open alerts with counts by severity and state.
func (m *Manager) Summarize() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		Timestamp:           m.now(),
		TotalActive:         len(m.active),
		BySeverity:          make(map[Severity]int),
		ByState:             make(map[State]int),
		AutoRecoveryEnabled: m.cfg.AutoRecoveryEnabled,
		MaintenanceMode:     m.cfg.MaintenanceMode,
		Alerts:              make([]*Alert, 0, len(m.active)),
	}
	if m.notifier != nil {
		s.ChannelCount = m.notifier.ChannelCount()
	}
	for _, a := range m.active {
		s.BySeverity[a.Severity]++
		s.ByState[a.State]++
		if a.Stale {
			s.StaleAlerts++
		}
		s.Alerts = append(s.Alerts, a.clone())
	}
	return s
}
