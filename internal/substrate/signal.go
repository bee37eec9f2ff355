package substrate

import "sync"

// memSignal implements Signal as a close-once channel.
type memSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal creates an unset shutdown signal.
func NewSignal() Signal {
	return &memSignal{ch: make(chan struct{})}
}

func (s *memSignal) Set() {
	s.once.Do(func() { close(s.ch) })
}

func (s *memSignal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}
