package service

import (
	"context"
	"sync"

	"deeplink/internal/model"
)

// Session holds the live state of one user's validation runs. Starting a
// run cancels the previous one and bumps the generation; writes carrying
// an older generation are dropped.
type Session struct {
	// emitMu serializes progress delivery against Begin and Cancel.
	// Lock order is emitMu, then mu.
	emitMu sync.Mutex
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	req    model.ValidationRequest
	state  model.ValidationState
}

func NewSession() *Session {
	return &Session{}
}

// Begin resets the state for req and returns the run context and its
// generation.
func (s *Session) Begin(parent context.Context, req model.ValidationRequest) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	s.req = req
	s.state = model.ValidationState{Domain: req.Domain}
	return ctx, s.gen
}

// apply runs fn on the state if gen is still current and returns a copy
// of the updated state.
func (s *Session) apply(gen uint64, fn func(*model.ValidationState)) (model.ValidationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return model.ValidationState{}, false
	}
	fn(&s.state)
	return s.state, true
}

// emit applies fn like apply and, while gen is still current, hands the
// new state to send. Begin and Cancel wait for an emit in flight, so a
// replaced run sends nothing once they return.
func (s *Session) emit(gen uint64, fn func(*model.ValidationState), send func(model.ValidationState)) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	state, ok := s.apply(gen, fn)
	if ok && send != nil {
		send(state)
	}
	return ok
}

// end releases the run context of gen.
func (s *Session) end(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// Snapshot returns a copy of the request and state of the current run.
func (s *Session) Snapshot() (model.ValidationRequest, model.ValidationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req, s.state
}

// Cancel stops the running validation, if any.
func (s *Session) Cancel() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
