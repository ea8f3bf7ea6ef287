package plugin

import (
	"context"
	"fmt"
	"sync"

	"tempus/multimodal"
	"tempus/routing"
	"tempus/utils/timer"
)

type sessionState int

const (
	sessionIdle sessionState = iota
	sessionPreProcessed
	sessionProcessed
	sessionPostProcessed

	// keeps the current state
	sessionKeep sessionState = -1
)

var sessionStateNames = [...]string{"idle", "pre_processed", "processed", "post_processed"}

func (s sessionState) String() string {
	return sessionStateNames[s]
}

// Observer receives duration of every phase run through a session.
type Observer func(plugin, phase string, seconds float64)

// Session serializes request processing on a plugin and enforces the order
// pre_process, process, post_process, result, cleanup. Build phases go
// through the session too, so a graph is never swapped under a request.
type Session struct {
	mu      sync.Mutex
	p       Plugin
	state   sessionState
	observe Observer
	graph   *multimodal.Graph
}

// RequestReader builds a request against the graph a plugin works on.
type RequestReader func(g *multimodal.Graph) (*routing.Request, error)

func NewSession(p Plugin, observe Observer) *Session {
	return &Session{p: p, observe: observe}
}

func (s *Session) Plugin() Plugin {
	return s.p
}

// Graph returns the graph given to the plugin by the last Attach.
func (s *Session) Graph() *multimodal.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

func (s *Session) PreBuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.PreBuild(ctx)
}

// Attach runs build phases on g. A request in progress was checked against
// the previous graph, it is dropped.
func (s *Session) Attach(ctx context.Context, g *multimodal.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = sessionIdle
	if err := s.p.Build(ctx); err != nil {
		return fmt.Errorf("plugin %s: build: %w", s.p.Name(), err)
	}
	if err := s.p.PostBuild(ctx, g); err != nil {
		return fmt.Errorf("plugin %s: post_build: %w", s.p.Name(), err)
	}
	s.graph = g
	if err := s.p.Validate(ctx); err != nil {
		return fmt.Errorf("plugin %s: validate: %w", s.p.Name(), err)
	}
	return nil
}

func (s *Session) run(phase string, allowed []sessionState, next sessionState, f func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step(phase, allowed, next, f)
}

// step runs one phase, the lock is held by the caller.
func (s *Session) step(phase string, allowed []sessionState, next sessionState, f func() error) error {
	ok := allowed == nil
	for _, a := range allowed {
		if s.state == a {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("plugin %s: %s called in state %s: %w", s.p.Name(), phase, s.state, ErrBadState)
	}
	t := timer.New()
	err := f()
	if s.observe != nil {
		s.observe(s.p.Name(), phase, t.Elapsed())
	}
	if err != nil {
		return err
	}
	if next != sessionKeep {
		s.state = next
	}
	return nil
}

func (s *Session) preProcess(ctx context.Context, r *routing.Request) error {
	return s.step("pre_process", nil, sessionPreProcessed, func() error {
		s.state = sessionIdle
		return s.p.PreProcess(ctx, r)
	})
}

func (s *Session) process(ctx context.Context) error {
	return s.step("process", []sessionState{sessionPreProcessed}, sessionProcessed, func() error {
		return s.p.Process(ctx)
	})
}

func (s *Session) postProcess(ctx context.Context) error {
	return s.step("post_process", []sessionState{sessionProcessed}, sessionPostProcessed, func() error {
		return s.p.PostProcess(ctx)
	})
}

func (s *Session) result(ctx context.Context) (routing.Result, error) {
	var res routing.Result
	err := s.step("result", []sessionState{sessionProcessed, sessionPostProcessed}, sessionKeep, func() (err error) {
		res, err = s.p.Result(ctx)
		return err
	})
	return res, err
}

func (s *Session) cleanup(ctx context.Context) error {
	return s.step("cleanup", nil, sessionIdle, func() error {
		return s.p.Cleanup(ctx)
	})
}

// PreProcess may be called in any state, it starts a new request.
func (s *Session) PreProcess(ctx context.Context, r *routing.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preProcess(ctx, r)
}

// PreProcessFrom reads the request against the attached graph and starts
// it, with no build phase in between.
func (s *Session) PreProcessFrom(ctx context.Context, read RequestReader) (*routing.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(read)
	if err != nil {
		return nil, err
	}
	return r, s.preProcess(ctx, r)
}

func (s *Session) read(read RequestReader) (*routing.Request, error) {
	if s.graph == nil {
		return nil, fmt.Errorf("plugin %s has no graph: %w", s.p.Name(), ErrBadState)
	}
	return read(s.graph)
}

func (s *Session) Process(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process(ctx)
}

func (s *Session) PostProcess(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postProcess(ctx)
}

func (s *Session) Result(ctx context.Context) (routing.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result(ctx)
}

func (s *Session) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanup(ctx)
}

// Run goes through every processing phase and always cleans up. The
// session stays locked for the whole run.
func (s *Session) Run(ctx context.Context, r *routing.Request) (routing.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(ctx, r)
}

// RunFrom is Run on a request read against the attached graph.
func (s *Session) RunFrom(ctx context.Context, read RequestReader) (*routing.Request, routing.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.read(read)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.runLocked(ctx, r)
	return r, res, err
}

func (s *Session) runLocked(ctx context.Context, r *routing.Request) (res routing.Result, err error) {
	defer func() {
		if cerr := s.cleanup(ctx); err == nil {
			err = cerr
		}
	}()
	if err = s.preProcess(ctx, r); err != nil {
		return nil, err
	}
	if err = s.process(ctx); err != nil {
		return nil, err
	}
	if err = s.postProcess(ctx); err != nil {
		return nil, err
	}
	return s.result(ctx)
}

func (s *Session) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Metrics()
}
