package registry

import "sync"

// subscription ties one registry handler to one API hook. attach and detach
// are idempotent: a detached subscription leaves nothing on the hook.
type subscription struct {
	name      string
	subscribe func() func()

	mu          sync.Mutex
	unsubscribe func()
}

func newSubscription(name string, subscribe func() func()) *subscription {
	return &subscription{name: name, subscribe: subscribe}
}

func (s *subscription) attach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe == nil {
		s.unsubscribe = s.subscribe()
	}
}

func (s *subscription) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *subscription) attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribe != nil
}
