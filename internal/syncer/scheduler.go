// Package syncer captures live sandbox filesystems back into the durable
// store. Captures are coalesced per agent and swapped in atomically, so the
// store never holds a half-written snapshot.
package syncer

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/sandbox"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// Result describes one completed capture run.
type Result struct {
	RunID     string `json:"run_id"`
	Agent     string `json:"agent"`
	Live      bool   `json:"live"`
	Captured  int    `json:"captured"`
	Coalesced bool   `json:"coalesced,omitempty"` // folded into an already queued run
}

// syncState tracks per-agent in-flight captures. At most one capture runs per
// agent; triggers arriving mid-run collapse into a single queued follow-up.
type syncState struct {
	running bool
	pending bool
}

// Scheduler owns the background capture loop and the per-agent debounce
// timers fed by write notifications.
type Scheduler struct {
	store       *sql.DB
	mgr         *sandbox.Manager
	concurrency int
	debounce    time.Duration
	interval    time.Duration

	timers sync.Map // agentNorm -> *time.Timer

	mu     sync.Mutex
	states map[string]*syncState

	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewScheduler builds a scheduler. interval 0 disables the periodic loop;
// explicit Sync and Notify still work.
func NewScheduler(store *sql.DB, mgr *sandbox.Manager, concurrency int, debounce, interval time.Duration) *Scheduler {
	if concurrency <= 0 {
		concurrency = 4
	}
	if debounce <= 0 {
		debounce = 750 * time.Millisecond
	}
	return &Scheduler{
		store:       store,
		mgr:         mgr,
		concurrency: concurrency,
		debounce:    debounce,
		interval:    interval,
		states:      make(map[string]*syncState),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the periodic capture loop. No-op when the interval is zero.
func (s *Scheduler) Start(ctx context.Context) {
	s.started.Store(true)
	if s.interval <= 0 {
		close(s.done)
		return
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.syncAllLive(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the periodic loop and cancels pending debounce timers. Safe to
// call whether or not Start ever ran.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}

	s.timers.Range(func(key, value any) bool {
		value.(*time.Timer).Stop()
		s.timers.Delete(key)
		return true
	})
}

// Notify schedules a capture for an agent after a quiet period. Each call
// resets the agent's timer, so a burst of writes produces one capture.
func (s *Scheduler) Notify(agentNorm string) {
	if existing, ok := s.timers.Load(agentNorm); ok {
		existing.(*time.Timer).Stop()
	}

	timer := time.AfterFunc(s.debounce, func() {
		s.timers.Delete(agentNorm)
		if _, err := s.Sync(context.Background(), agentNorm); err != nil {
			log.Printf("sync %s: %v", agentNorm, err)
		}
	})
	s.timers.Store(agentNorm, timer)
}

// Sync captures the agent's live sandbox into the store. Without a live
// handle the run reports Live=false and captures nothing; syncing never
// creates a sandbox. A trigger arriving while a capture is already running
// queues at most one follow-up run and returns Coalesced.
func (s *Scheduler) Sync(ctx context.Context, agentNorm string) (*Result, error) {
	runID := ulid.Make().String()

	s.mu.Lock()
	state := s.states[agentNorm]
	if state == nil {
		state = &syncState{}
		s.states[agentNorm] = state
	}
	if state.running {
		state.pending = true
		s.mu.Unlock()
		return &Result{RunID: runID, Agent: agentNorm, Coalesced: true}, nil
	}
	state.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		rerun := state.pending
		state.pending = false
		state.running = false
		s.mu.Unlock()

		if rerun {
			go func() {
				if _, err := s.Sync(context.Background(), agentNorm); err != nil {
					log.Printf("sync %s (queued rerun): %v", agentNorm, err)
				}
			}()
		}
	}()

	return s.capture(ctx, runID, agentNorm)
}

func (s *Scheduler) capture(ctx context.Context, runID, agentNorm string) (*Result, error) {
	h := s.mgr.Peek(agentNorm)
	if h == nil {
		return &Result{RunID: runID, Agent: agentNorm, Live: false}, nil
	}

	paths, err := h.Sandbox.List(ctx, "/")
	if err != nil {
		return nil, s.captureFailed(agentNorm, h, err)
	}

	records := make([]*wsfile.Record, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			content, err := h.Sandbox.ReadFile(gctx, p)
			if err != nil {
				return err
			}
			records[i] = &wsfile.Record{Agent: agentNorm, Path: p, Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// A failed read aborts the whole capture; the previous snapshot in
		// the store stays intact.
		return nil, s.captureFailed(agentNorm, h, err)
	}

	if err := db.ReplaceFiles(s.store, agentNorm, records); err != nil {
		return nil, err
	}

	return &Result{
		RunID:    runID,
		Agent:    agentNorm,
		Live:     true,
		Captured: len(records),
	}, nil
}

func (s *Scheduler) captureFailed(agentNorm string, h *sandbox.Handle, err error) error {
	if sandbox.IsGone(err) {
		s.mgr.MarkLost(agentNorm, h.ID)
		return errors.NewSandboxUnavailable("sandbox was lost during capture")
	}
	return errors.NewSandboxUnavailable(err.Error())
}

// syncAllLive runs one capture per live agent, sequentially. Capture work is
// already bounded internally; the loop stays simple.
func (s *Scheduler) syncAllLive(ctx context.Context) {
	for _, agent := range s.mgr.LiveAgents() {
		if _, err := s.Sync(ctx, agent); err != nil {
			log.Printf("periodic sync %s: %v", agent, err)
		}
	}
}
