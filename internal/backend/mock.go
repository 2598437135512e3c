package backend

import (
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/tide/internal/track"
)

var (
	_ Backend = (*MockBackend)(nil)
	_ Handle  = (*MockHandle)(nil)
	_ Session = (*MockSession)(nil)
)

// MockBackend is a test double for Backend.
type MockBackend struct {
	BackendVariant Variant
	Formats        map[string]bool
	OpenErr        error
	OpenCalls      int
	LastOpened     track.Descriptor
	Handle         *MockHandle
}

// NewMockBackend creates a mock backend claiming the given formats.
func NewMockBackend(v Variant, formats ...string) *MockBackend {
	m := &MockBackend{BackendVariant: v, Formats: make(map[string]bool)}
	for _, f := range formats {
		m.Formats[f] = true
	}
	return m
}

func (m *MockBackend) Variant() Variant { return m.BackendVariant }

func (m *MockBackend) CanHandle(d track.Descriptor) bool {
	return m.Formats[formatHint(d)]
}

func (m *MockBackend) Open(d track.Descriptor) (Handle, error) {
	m.OpenCalls++
	m.LastOpened = d
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.Handle == nil {
		m.Handle = NewMockHandle(3 * time.Minute)
	}
	return m.Handle, nil
}

// MockHandle is a test double for Handle with a manually advanced clock.
type MockHandle struct {
	Playing    bool
	Stopped    bool
	Closed     bool
	Len        time.Duration
	elapsed    time.Duration
	SeekCalls  []time.Duration
	SeekErr    error
	finishedCh chan struct{}
}

// NewMockHandle creates a mock handle for a track of the given duration.
func NewMockHandle(duration time.Duration) *MockHandle {
	return &MockHandle{
		Len:        duration,
		finishedCh: make(chan struct{}, 1),
	}
}

func (m *MockHandle) Play()  { m.Playing = true }
func (m *MockHandle) Pause() { m.Playing = false }
func (m *MockHandle) Stop()  { m.Playing = false; m.Stopped = true }

func (m *MockHandle) Seek(pos time.Duration) error {
	if m.SeekErr != nil {
		return m.SeekErr
	}
	if pos < 0 || pos >= m.Len {
		return ErrSeekOutOfRange
	}
	m.SeekCalls = append(m.SeekCalls, pos)
	m.elapsed = 0
	m.Playing = false
	return nil
}

func (m *MockHandle) Elapsed() time.Duration  { return m.elapsed }
func (m *MockHandle) Duration() time.Duration { return m.Len }

func (m *MockHandle) Format() beep.Format {
	return beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
}

func (m *MockHandle) Finished() <-chan struct{} { return m.finishedCh }

func (m *MockHandle) Close() error {
	m.Closed = true
	return nil
}

// Advance moves the mock render clock forward.
func (m *MockHandle) Advance(d time.Duration) {
	m.elapsed += d
}

// FinishTrack signals natural end of the scheduled run.
func (m *MockHandle) FinishTrack() {
	select {
	case m.finishedCh <- struct{}{}:
	default:
	}
}

// MockSession is a test double for Session.
type MockSession struct {
	Activated    bool
	ActivateErr  error
	rate         beep.SampleRate
	maxRate      int
	Suspended    bool
	Rebuilds     int
	volume       float64
	muted        bool
	PlayedRoots  int
	ActivateReqs []beep.SampleRate
}

// NewMockSession creates a mock session supporting rates up to maxRate.
func NewMockSession(maxRate int) *MockSession {
	return &MockSession{maxRate: maxRate, volume: 1.0}
}

func (m *MockSession) Activate(rate beep.SampleRate) error {
	m.ActivateReqs = append(m.ActivateReqs, rate)
	if m.ActivateErr != nil {
		return m.ActivateErr
	}
	m.Activated = true
	m.rate = rate
	return nil
}

func (m *MockSession) Rate() beep.SampleRate { return m.rate }
func (m *MockSession) MaxSampleRate() int    { return m.maxRate }

func (m *MockSession) Play(_ beep.Streamer) { m.PlayedRoots++ }
func (m *MockSession) Lock()                {}
func (m *MockSession) Unlock()              {}

func (m *MockSession) Suspend() error { m.Suspended = true; return nil }
func (m *MockSession) Resume() error  { m.Suspended = false; return nil }
func (m *MockSession) Rebuild() error { m.Rebuilds++; return nil }

func (m *MockSession) SetVolume(level float64) { m.volume = level }
func (m *MockSession) Volume() float64         { return m.volume }
func (m *MockSession) SetMuted(muted bool)     { m.muted = muted }
func (m *MockSession) Muted() bool             { return m.muted }
