package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type activeEntry struct {
	session *Session
	routes  map[string]RoutingEntry
}

// Registry is the in-memory routing index for active sessions.
//
// All public methods are safe for concurrent use.
type Registry struct {
	loader Loader
	logger Logger

	mu      sync.RWMutex // Protects order and entries
	order   []int64      // Activation order
	entries map[int64]*activeEntry

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex // Serialises add/remove per session id
}

// NewRegistry creates an empty registry that loads sessions through loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:  loader,
		logger:  noopLogger{},
		entries: make(map[int64]*activeEntry),
		locks:   make(map[int64]*sync.Mutex),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

func (r *Registry) lockFor(id int64) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	m, ok := r.locks[id]
	if !ok {
		m = &sync.Mutex{}
		r.locks[id] = m
	}
	return m
}

// AddSession loads the session and installs its routing table.
//
// Re-adding an active session replaces its table and keeps its position.
// Returns ErrSessionNotFound (wrapped) if the id does not resolve, and
// ErrSessionNotActive (wrapped) if the stored session is not IN PROGRESS,
// in which case any stale entry for it is evicted.
func (r *Registry) AddSession(ctx context.Context, id int64) error {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	return r.addLocked(ctx, id)
}

// addLocked is AddSession without the per-id lock. Callers hold lockFor(id).
func (r *Registry) addLocked(ctx context.Context, id int64) error {
	s, err := r.loader.LoadSession(ctx, id)
	if err != nil {
		return fmt.Errorf("activating session %d: %w", id, err)
	}
	if !s.StateID.Active() {
		r.removeLocked(id)
		return fmt.Errorf("activating session %d in state %s: %w", id, s.StateID, ErrSessionNotActive)
	}

	entry := &activeEntry{session: s.DeepCopy(), routes: buildRoutes(s)}

	r.mu.Lock()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = entry
	r.mu.Unlock()

	r.logger.Info("session activated", "session_id", id, "tag", s.Tag, "sensors", len(entry.routes))
	return nil
}

// Transition runs update while holding the session's lock, then brings the
// registry in line with the state update returned: IN PROGRESS installs the
// session, any other state evicts it. Concurrent transitions of one session
// therefore leave the registry matching the last write to the store.
//
// If update fails its error is returned with a nil session. If the store
// write succeeded but activation did not, the updated session is returned
// together with the activation error.
func (r *Registry) Transition(ctx context.Context, id int64, update func(context.Context) (*Session, error)) (*Session, error) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s, err := update(ctx)
	if err != nil {
		return nil, err
	}

	if s.StateID.Active() {
		if err := r.addLocked(ctx, id); err != nil {
			return s, err
		}
		return s, nil
	}
	r.removeLocked(id)
	return s, nil
}

// buildRoutes maps every sensor reachable through the session's parts.
// Parts are processed in order, so a later part wins an entity id collision.
func buildRoutes(s *Session) map[string]RoutingEntry {
	routes := make(map[string]RoutingEntry)
	for _, p := range s.Parts {
		if p.SensorGroup == nil {
			continue
		}
		partName := ""
		if p.PartName != nil {
			partName = p.PartName.Name
		}
		for _, sensor := range p.SensorGroup.Sensors {
			routes[sensor.EntityID] = RoutingEntry{
				SessionID: s.ID,
				PartID:    p.ID,
				SensorID:  sensor.ID,
				GroupName: p.SensorGroup.Name,
				PartName:  partName,
			}
		}
	}
	return routes
}

// RemoveSession evicts a session. It is a no-op if the session is not active.
func (r *Registry) RemoveSession(id int64) {
	lock := r.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	r.removeLocked(id)
}

func (r *Registry) removeLocked(id int64) {
	r.mu.Lock()
	_, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
		r.order = slices.DeleteFunc(r.order, func(v int64) bool { return v == id })
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("session deactivated", "session_id", id)
	}
}

// RestoreActiveSessions activates every IN PROGRESS session.
// Sessions that fail to load are logged and skipped; the count of restored
// sessions is returned.
func (r *Registry) RestoreActiveSessions(ctx context.Context) (int, error) {
	ids, err := r.loader.ListIDsByState(ctx, StateInProgress)
	if err != nil {
		return 0, fmt.Errorf("listing in-progress sessions: %w", err)
	}

	restored := 0
	for _, id := range ids {
		if err := r.AddSession(ctx, id); err != nil {
			r.logger.Error("failed to restore session", "session_id", id, "error", err)
			continue
		}
		restored++
	}

	r.logger.Info("active sessions restored", "count", restored, "candidates", len(ids))
	return restored, nil
}

// GetSensorInfo returns the routing entry for entityID.
// Active sessions are scanned in activation order and the first match wins.
func (r *Registry) GetSensorInfo(entityID string) (RoutingEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if e, ok := r.entries[id].routes[entityID]; ok {
			return e, true
		}
	}
	return RoutingEntry{}, false
}

// IsSessionActive reports whether id is in the registry.
func (r *Registry) IsSessionActive(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[id]
	return ok
}

// GetAllActiveSessions returns copies of every entry in activation order.
func (r *Registry) GetAllActiveSessions() []ActiveSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ActiveSession, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		out = append(out, ActiveSession{
			Session: *e.session.DeepCopy(),
			Routes:  maps.Clone(e.routes),
		})
	}
	return out
}

// ActiveCount returns the number of active sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ClearAllSessions empties the registry.
func (r *Registry) ClearAllSessions() {
	r.mu.Lock()
	n := len(r.entries)
	r.order = nil
	r.entries = make(map[int64]*activeEntry)
	r.mu.Unlock()

	r.logger.Info("all sessions cleared", "count", n)
}
