// Package audiosession owns exclusive access to the audio output hardware:
// the speaker claim, the shared render graph (mixer and master volume), and
// the suspend/resume pair used around system interruptions. Activation is
// lazy; nothing is claimed before the first play request.
package audiosession

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/sirupsen/logrus"

	"github.com/llehouerou/tide/internal/backend"
)

// Verify Controller implements the session contract at compile time.
var _ backend.Session = (*Controller)(nil)

// rateEpsilon is the output-format change threshold: a configured rate
// within this many Hz of the requested one keeps the current graph.
const rateEpsilon = 100

const eventBufferSize = 16

// Config tunes the controller.
type Config struct {
	MaxSampleRate int           // device rate cap, Hz
	BufferLen     time.Duration // speaker buffer length
}

// DefaultConfig returns the controller defaults: 192 kHz cap, 100 ms buffer.
func DefaultConfig() Config {
	return Config{
		MaxSampleRate: 192000,
		BufferLen:     100 * time.Millisecond,
	}
}

// Controller claims and configures the output device and exposes the shared
// render graph tail: mixer → master volume → hardware.
type Controller struct {
	mu sync.Mutex

	cfg    Config
	active bool
	rate   beep.SampleRate

	mixer  *beep.Mixer
	master *effects.Volume

	volumeLevel float64
	muted       bool
	suspended   bool

	events chan Event
	log    *logrus.Entry
}

// New creates an inactive controller. The device is claimed on the first
// Activate call.
func New(cfg Config) *Controller {
	if cfg.MaxSampleRate <= 0 {
		cfg.MaxSampleRate = DefaultConfig().MaxSampleRate
	}
	if cfg.BufferLen <= 0 {
		cfg.BufferLen = DefaultConfig().BufferLen
	}
	return &Controller{
		cfg:         cfg,
		volumeLevel: 1.0,
		events:      make(chan Event, eventBufferSize),
		log:         logrus.WithField("component", "audiosession"),
	}
}

// Activate claims the output device at the given rate, lazily on first call.
// A rate change beyond rateEpsilon on an active session tears down and
// rebuilds the render graph; cross-sample-rate continuation is unsafe.
func (c *Controller) Activate(rate beep.SampleRate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		diff := int(rate) - int(c.rate)
		if diff < 0 {
			diff = -diff
		}
		if diff <= rateEpsilon {
			return nil
		}
		c.log.WithFields(logrus.Fields{"from": c.rate, "to": rate}).
			Info("output format changed, rebuilding render graph")
		speaker.Close()
		c.active = false
	}

	return c.initGraph(rate)
}

// initGraph claims the device and rebuilds mixer → master volume. Callers
// hold c.mu.
func (c *Controller) initGraph(rate beep.SampleRate) error {
	if err := speaker.Init(rate, rate.N(c.cfg.BufferLen)); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrSessionConfig, err)
	}
	c.mixer = &beep.Mixer{}
	c.master = &effects.Volume{
		Streamer: c.mixer,
		Base:     2,
		Volume:   levelToVolume(c.volumeLevel),
		Silent:   c.muted,
	}
	speaker.Play(c.master)
	c.rate = rate
	c.active = true
	c.suspended = false
	c.log.WithField("rate", rate).Debug("audio session active")
	return nil
}

// Rate returns the configured output rate, 0 while inactive.
func (c *Controller) Rate() beep.SampleRate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// MaxSampleRate returns the device rate cap.
func (c *Controller) MaxSampleRate() int {
	return c.cfg.MaxSampleRate
}

// Play adds a source to the render graph. Sources remove themselves by
// returning false from Stream.
func (c *Controller) Play(s beep.Streamer) {
	c.mu.Lock()
	active := c.active
	mixer := c.mixer
	c.mu.Unlock()
	if !active {
		return
	}
	speaker.Lock()
	mixer.Add(s)
	speaker.Unlock()
}

// Lock acquires the render lock.
func (c *Controller) Lock() { speaker.Lock() }

// Unlock releases the render lock.
func (c *Controller) Unlock() { speaker.Unlock() }

// Suspend releases the device without tearing down the graph. Open handles
// and their schedules stay intact.
func (c *Controller) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.suspended {
		return nil
	}
	if err := speaker.Suspend(); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrSessionConfig, err)
	}
	c.suspended = true
	return nil
}

// Resume reclaims the device after Suspend. A no-op when not suspended.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || !c.suspended {
		return nil
	}
	if err := speaker.Resume(); err != nil {
		return fmt.Errorf("%w: %v", backend.ErrSessionConfig, err)
	}
	c.suspended = false
	return nil
}

// Rebuild tears down and fully recreates the device claim and render graph
// at the current rate. Used after a service reset; scheduled sources are
// lost and must be rescheduled by the engine.
func (c *Controller) Rebuild() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	c.active = false
	return c.initGraph(c.rate)
}

// Close releases the device.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil
	}
	speaker.Clear()
	speaker.Close()
	c.active = false
	return nil
}

// Events delivers system audio events for the engine's serialized owner.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Inject delivers a system event. Non-blocking: if the engine has fallen
// this far behind, the oldest unconsumed event wins.
func (c *Controller) Inject(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.WithField("event", ev.Kind).Warn("event buffer full, dropping")
	}
}

// SetVolume sets the master volume level (0.0 to 1.0).
func (c *Controller) SetVolume(level float64) {
	level = math.Min(math.Max(level, 0), 1)

	c.mu.Lock()
	c.volumeLevel = level
	master := c.master
	muted := c.muted
	c.mu.Unlock()

	if master != nil && !muted {
		speaker.Lock()
		master.Volume = levelToVolume(level)
		speaker.Unlock()
	}
}

// Volume returns the master volume level (0.0 to 1.0).
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volumeLevel
}

// SetMuted sets the muted state without losing the stored level.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	master := c.master
	c.mu.Unlock()

	if master != nil {
		speaker.Lock()
		master.Silent = muted
		speaker.Unlock()
	}
}

// Muted returns true if the master output is muted.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// levelToVolume converts a 0.0-1.0 level to beep's logarithmic volume.
// Base 2: 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> -10 (essentially silent).
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
