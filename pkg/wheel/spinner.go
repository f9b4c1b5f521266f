package wheel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// DefaultDuration is how long the settle animation runs.
const DefaultDuration = 5 * time.Second

const defaultFrameInterval = time.Second / 60

var (
	ErrSpinInProgress = errors.New("wheel: a spin is already in progress")
	ErrNoSpinsLeft    = errors.New("wheel: no spins left")
	ErrStillAnimating = errors.New("wheel: still animating")
)

// State is the spinner's position in the spin sequence.
type State int

const (
	StateIdle State = iota
	StateSpinRequested
	StateAnimating
	StateRevealed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpinRequested:
		return "spin-requested"
	case StateAnimating:
		return "animating"
	case StateRevealed:
		return "revealed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Segment is one wheel slice as rendered by the client.
type Segment struct {
	Name  string
	Color string
}

// Outcome is the server's answer to a spin request.
type Outcome struct {
	Index      int
	RewardName string
	CouponCode string
}

// Backend is the server surface the spinner needs.
type Backend interface {
	Spin(ctx context.Context) (Outcome, error)
	SpinsRemaining(ctx context.Context) (int, error)
}

// FrameSource yields frame timestamps until stop is called.
type FrameSource func() (frames <-chan time.Time, stop func())

// TickerFrames is the default ~60Hz frame source.
func TickerFrames(interval time.Duration) FrameSource {
	return func() (<-chan time.Time, func()) {
		t := time.NewTicker(interval)
		return t.C, t.Stop
	}
}

type Option func(*Spinner)

func WithPointer(angle float64) Option { return func(s *Spinner) { s.pointer = angle } }
func WithDuration(d time.Duration) Option { return func(s *Spinner) { s.duration = d } }
func WithExtraTurns(n int) Option { return func(s *Spinner) { s.extraTurns = n } }
func WithFrameSource(f FrameSource) Option { return func(s *Spinner) { s.frames = f } }
func WithClock(now func() time.Time) Option { return func(s *Spinner) { s.now = now } }
func WithLogger(logg *logger.Logger) Option { return func(s *Spinner) { s.logg = logg } }
func OnFrame(fn func(rotation float64)) Option { return func(s *Spinner) { s.onFrame = fn } }

// Spinner guards a single in-flight spin and drives its animation.
type Spinner struct {
	backend    Backend
	segments   []Segment
	pointer    float64
	duration   time.Duration
	extraTurns int
	frames     FrameSource
	now        func() time.Time
	onFrame    func(float64)
	logg       *logger.Logger

	mu       sync.Mutex
	state    State
	rotation float64
	spins    int
	result   *Outcome
}

func NewSpinner(backend Backend, segments []Segment, opts ...Option) (*Spinner, error) {
	if backend == nil {
		return nil, fmt.Errorf("wheel backend required")
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("wheel segments required")
	}
	s := &Spinner{
		backend:    backend,
		segments:   append([]Segment(nil), segments...),
		pointer:    DefaultPointer,
		duration:   DefaultDuration,
		extraTurns: DefaultExtraTurns,
		frames:     TickerFrames(defaultFrameInterval),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Refresh reloads the spin balance from the server.
func (s *Spinner) Refresh(ctx context.Context) error {
	n, err := s.backend.SpinsRemaining(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.spins = n
	s.mu.Unlock()
	return nil
}

func (s *Spinner) refreshQuietly(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "wheel: refresh after spin failed")
	}
}

// Spin requests a spin, animates to the winning segment and reveals it. It
// blocks until the animation finishes. A second call while a spin is running
// or revealed returns ErrSpinInProgress without touching the network.
func (s *Spinner) Spin(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return Outcome{}, ErrSpinInProgress
	}
	if s.spins <= 0 {
		s.mu.Unlock()
		return Outcome{}, ErrNoSpinsLeft
	}
	s.state = StateSpinRequested
	start := s.rotation
	s.mu.Unlock()

	outcome, err := s.backend.Spin(ctx)
	if err != nil {
		s.setState(StateIdle)
		return Outcome{}, err
	}
	target, err := TargetRotation(start, outcome.Index, len(s.segments), s.extraTurns, s.pointer)
	if err != nil {
		// The server consumed a spin we cannot show; take its count rather
		// than guessing.
		s.refreshQuietly(ctx)
		s.setState(StateIdle)
		return Outcome{}, err
	}

	s.setState(StateAnimating)
	animErr := s.animate(ctx, start, target)

	if animErr == nil {
		s.refreshQuietly(ctx)
	}

	s.mu.Lock()
	s.rotation = target
	s.result = &outcome
	s.state = StateRevealed
	s.mu.Unlock()
	return outcome, animErr
}

func (s *Spinner) animate(ctx context.Context, start, target float64) error {
	frames, stop := s.frames()
	defer stop()

	began := s.now()
	for {
		select {
		case <-ctx.Done():
			s.emit(target)
			return ctx.Err()
		case at, ok := <-frames:
			if !ok {
				s.emit(target)
				return nil
			}
			t := 1.0
			if s.duration > 0 {
				t = float64(at.Sub(began)) / float64(s.duration)
			}
			rotation := start + (target-start)*EaseOutCubic(t)
			s.emit(rotation)
			if t >= 1 {
				return nil
			}
		}
	}
}

func (s *Spinner) emit(rotation float64) {
	s.mu.Lock()
	s.rotation = rotation
	s.mu.Unlock()
	if s.onFrame != nil {
		s.onFrame(rotation)
	}
}

// CloseReveal dismisses the revealed reward and returns to idle.
func (s *Spinner) CloseReveal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSpinRequested, StateAnimating:
		return ErrStillAnimating
	case StateRevealed:
		s.state = StateIdle
	}
	return nil
}

func (s *Spinner) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Spinner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Spinner) Rotation() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotation
}

func (s *Spinner) SpinsRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spins
}

// Result is the last revealed outcome, if any.
func (s *Spinner) Result() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Outcome{}, false
	}
	return *s.result, true
}

// Segments returns the rendered segment list.
func (s *Spinner) Segments() []Segment {
	return append([]Segment(nil), s.segments...)
}
