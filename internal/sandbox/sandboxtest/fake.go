// Package sandboxtest provides an in-memory sandbox provider for tests.
package sandboxtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hpungsan/burrow/internal/sandbox"
)

// FakeSandbox is an in-memory sandbox. Files live in a plain map; marking it
// gone makes every subsequent call fail with a tagged GoneError.
type FakeSandbox struct {
	mu    sync.Mutex
	id    string
	files map[string]string
	gone  bool

	// RunFunc, when set, handles RunCommand. Defaults to exit 0, no output.
	RunFunc func(ctx context.Context, command, cwd string, timeout time.Duration) (*sandbox.RunResult, error)
}

func (s *FakeSandbox) ID() string { return s.id }

// SetGone makes all future calls fail as gone.
func (s *FakeSandbox) SetGone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gone = true
}

// Files returns a copy of the current file map.
func (s *FakeSandbox) Files() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}

// PutFile seeds a file directly, bypassing the gone check.
func (s *FakeSandbox) PutFile(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
}

// RemoveFile drops a file directly, bypassing the gone check.
func (s *FakeSandbox) RemoveFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

func (s *FakeSandbox) checkGone() error {
	if s.gone {
		return &sandbox.GoneError{SandboxID: s.id}
	}
	return nil
}

func (s *FakeSandbox) List(ctx context.Context, root string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkGone(); err != nil {
		return nil, err
	}

	prefix := root
	if prefix != "/" {
		prefix += "/"
	}
	var paths []string
	for p := range s.files {
		if root == "/" || strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *FakeSandbox) ReadFile(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkGone(); err != nil {
		return "", err
	}

	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("read %s: no such file", path)
	}
	return content, nil
}

func (s *FakeSandbox) WriteFile(ctx context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkGone(); err != nil {
		return err
	}

	s.files[path] = content
	return nil
}

func (s *FakeSandbox) MakeDirs(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkGone()
}

func (s *FakeSandbox) RunCommand(ctx context.Context, command, cwd string, timeout time.Duration) (*sandbox.RunResult, error) {
	s.mu.Lock()
	if err := s.checkGone(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	run := s.RunFunc
	s.mu.Unlock()

	if run != nil {
		return run(ctx, command, cwd, timeout)
	}
	return &sandbox.RunResult{ExitCode: 0}, nil
}

// FakeProvider creates FakeSandboxes and reconnects to ones it remembers.
type FakeProvider struct {
	mu        sync.Mutex
	sandboxes map[string]*FakeSandbox
	nextID    int

	creates atomic.Int64

	// CreateErr, when set, fails every Create call.
	CreateErr error
	// CreateDelay slows Create down, for exercising concurrent acquisition.
	CreateDelay time.Duration
	// OnCreate, when set, is called with each new sandbox before it is returned.
	OnCreate func(*FakeSandbox)
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{sandboxes: make(map[string]*FakeSandbox)}
}

// CreateCount reports how many sandboxes Create has produced.
func (p *FakeProvider) CreateCount() int {
	return int(p.creates.Load())
}

// Get returns a sandbox by provider ID, or nil.
func (p *FakeProvider) Get(id string) *FakeSandbox {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sandboxes[id]
}

func (p *FakeProvider) Create(ctx context.Context) (sandbox.Sandbox, error) {
	if p.CreateDelay > 0 {
		select {
		case <-time.After(p.CreateDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	sb := &FakeSandbox{
		id:    fmt.Sprintf("sbx-%d", p.nextID),
		files: make(map[string]string),
	}
	p.sandboxes[sb.id] = sb
	p.creates.Add(1)
	if p.OnCreate != nil {
		p.OnCreate(sb)
	}
	return sb, nil
}

func (p *FakeProvider) Connect(ctx context.Context, id string) (sandbox.Sandbox, error) {
	p.mu.Lock()
	sb := p.sandboxes[id]
	p.mu.Unlock()

	if sb == nil {
		return nil, &sandbox.GoneError{SandboxID: id}
	}
	sb.mu.Lock()
	gone := sb.gone
	sb.mu.Unlock()
	if gone {
		return nil, &sandbox.GoneError{SandboxID: id}
	}
	return sb, nil
}
