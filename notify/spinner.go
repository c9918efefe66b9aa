package notify

import "sync"

// Indicator is shown when a request starts and hidden exactly once when it ends.
type Indicator interface {
	Show()
	Hide()
}

// NoOpIndicator ignores show and hide.
type NoOpIndicator struct{}

func (NoOpIndicator) Show() {}
func (NoOpIndicator) Hide() {}

// Spinner counts outstanding requests and reports transitions between idle and busy.
type Spinner struct {
	mu       sync.Mutex
	active   int
	onChange func(visible bool)
}

// NewSpinner returns a Spinner calling onChange, under its lock, each time visibility
// flips. onChange may be nil.
func NewSpinner(onChange func(visible bool)) *Spinner {
	return &Spinner{onChange: onChange}
}

func (s *Spinner) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active++
	if s.active == 1 && s.onChange != nil {
		s.onChange(true)
	}
}

// Hide never drives the count below zero.
func (s *Spinner) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == 0 {
		return
	}
	s.active--
	if s.active == 0 && s.onChange != nil {
		s.onChange(false)
	}
}

// Visible reports whether any request is outstanding.
func (s *Spinner) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active > 0
}

// Active returns the number of outstanding requests.
func (s *Spinner) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
