package sandbox

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// Handle is one acquired sandbox for an agent. Handles are never mutated
// after construction except for the stale flag; a lost sandbox means a new
// Handle with a new ID, never a repaired old one.
type Handle struct {
	Agent     string // normalized
	ID        string // internal handle identity (ulid), distinct from the provider's sandbox ID
	Sandbox   Sandbox
	CreatedAt time.Time

	stale atomic.Bool
}

// Stale reports whether this handle has been marked lost.
func (h *Handle) Stale() bool {
	return h.stale.Load()
}

// Manager owns at most one live handle per agent. Acquisition is
// single-flighted per agent: concurrent callers share one reconnect-or-create
// and receive the same handle.
type Manager struct {
	store    *sql.DB
	provider Provider

	// restoreConcurrency bounds parallel file writes during restore.
	restoreConcurrency int

	group singleflight.Group

	mu      sync.Mutex
	handles map[string]*Handle // agent -> live handle
}

// NewManager builds a manager over the given store and provider.
func NewManager(store *sql.DB, provider Provider, restoreConcurrency int) *Manager {
	if restoreConcurrency <= 0 {
		restoreConcurrency = 4
	}
	return &Manager{
		store:              store,
		provider:           provider,
		restoreConcurrency: restoreConcurrency,
		handles:            make(map[string]*Handle),
	}
}

// Peek returns the live handle for an agent, or nil. Never creates.
func (m *Manager) Peek(agentNorm string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.handles[agentNorm]
	if h == nil || h.Stale() {
		return nil
	}
	return h
}

// LiveAgents returns the agents that currently hold a live handle, sorted.
func (m *Manager) LiveAgents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	agents := make([]string, 0, len(m.handles))
	for agent, h := range m.handles {
		if !h.Stale() {
			agents = append(agents, agent)
		}
	}
	sort.Strings(agents)
	return agents
}

// Acquire returns the agent's live handle, reconnecting to a remembered
// sandbox or creating a fresh one. Creation restores every stored file into
// the new sandbox before the handle is published.
func (m *Manager) Acquire(ctx context.Context, agentNorm, agentRaw string) (*Handle, error) {
	v, err, _ := m.group.Do(agentNorm, func() (any, error) {
		return m.acquire(ctx, agentNorm, agentRaw)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (m *Manager) acquire(ctx context.Context, agentNorm, agentRaw string) (*Handle, error) {
	if h := m.Peek(agentNorm); h != nil {
		return h, nil
	}

	// Reconnect path: a remembered sandbox that still answers needs no
	// restore, its filesystem survived.
	remembered, err := db.GetSandboxID(m.store, agentNorm)
	if err != nil {
		return nil, err
	}
	if remembered != "" {
		sb, err := m.provider.Connect(ctx, remembered)
		if err == nil {
			return m.publish(agentNorm, sb), nil
		}
		if !IsGone(err) {
			return nil, err
		}
		// Remembered sandbox is gone for good; forget it and create fresh.
		if err := db.ClearSandboxID(m.store, agentNorm); err != nil {
			return nil, err
		}
	}

	sb, err := m.provider.Create(ctx)
	if err != nil {
		return nil, err
	}

	if err := db.SetSandboxID(m.store, agentNorm, agentRaw, sb.ID()); err != nil {
		return nil, err
	}

	m.restore(ctx, agentNorm, sb)

	return m.publish(agentNorm, sb), nil
}

// restore writes every stored file into a freshly created sandbox.
// Per-file failures are counted and logged; the batch never aborts. The
// store stays the source of truth either way.
func (m *Manager) restore(ctx context.Context, agentNorm string, sb Sandbox) {
	records, err := db.ListFiles(m.store, agentNorm)
	if err != nil {
		log.Printf("restore %s: listing store failed: %v", agentNorm, err)
		return
	}
	if len(records) == 0 {
		return
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.restoreConcurrency)

	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			if err := sb.MakeDirs(gctx, wsfile.Dir(rec.Path)); err != nil {
				failed.Add(1)
				return nil
			}
			if err := sb.WriteFile(gctx, rec.Path, rec.Content); err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		log.Printf("restore %s: %d of %d files failed", agentNorm, n, len(records))
	}
}

func (m *Manager) publish(agentNorm string, sb Sandbox) *Handle {
	h := &Handle{
		Agent:     agentNorm,
		ID:        ulid.Make().String(),
		Sandbox:   sb,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.handles[agentNorm] = h
	m.mu.Unlock()

	return h
}

// MarkLost marks a handle stale and drops it from the registry. The handle ID
// guards against a stale caller evicting a newer replacement handle.
func (m *Manager) MarkLost(agentNorm, handleID string) {
	m.mu.Lock()
	current := m.handles[agentNorm]
	if current == nil || current.ID != handleID {
		m.mu.Unlock()
		return
	}
	current.stale.Store(true)
	delete(m.handles, agentNorm)
	m.mu.Unlock()

	if err := db.ClearSandboxID(m.store, agentNorm); err != nil {
		log.Printf("mark lost %s: clearing sandbox ID failed: %v", agentNorm, err)
	}
}

// Release drops an agent's handle without touching the remembered sandbox ID,
// so a later Acquire reconnects instead of creating.
func (m *Manager) Release(agentNorm string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, agentNorm)
}
