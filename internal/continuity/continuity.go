// Package continuity keeps playback coherent while the process is not
// foregrounded: a recurring liveness check catches tracks that ran to their
// end while completion signals were unreliable, the master volume is polled
// for out-of-band changes, and state snapshots keep crash loss bounded.
// All timers run only between EnterBackground and EnterForeground, under a
// bounded-lifetime token; when the token expires continuity is abandoned
// gracefully after a final save.
package continuity

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/llehouerou/tide/internal/engine"
)

// Player is the slice of the engine the manager drives.
type Player interface {
	State() engine.State
	Volume() float64
	SaveState() error
	CheckEndOfTrack()
}

// Config holds timer intervals and the background token lifetime.
type Config struct {
	LivenessInterval   time.Duration
	VolumeInterval     time.Duration
	SnapshotInterval   time.Duration
	BackgroundLifetime time.Duration
}

// DefaultConfig matches the intervals the engine was tuned for.
func DefaultConfig() Config {
	return Config{
		LivenessInterval:   500 * time.Millisecond,
		VolumeInterval:     750 * time.Millisecond,
		SnapshotInterval:   30 * time.Second,
		BackgroundLifetime: 25 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LivenessInterval <= 0 {
		c.LivenessInterval = d.LivenessInterval
	}
	if c.VolumeInterval <= 0 {
		c.VolumeInterval = d.VolumeInterval
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = d.SnapshotInterval
	}
	if c.BackgroundLifetime <= 0 {
		c.BackgroundLifetime = d.BackgroundLifetime
	}
	return c
}

// Manager owns the background timers. Methods are safe for concurrent use.
type Manager struct {
	player   Player
	cfg      Config
	onVolume func(float64)
	log      *logrus.Entry

	mu        sync.Mutex
	stop      chan struct{}
	abandoned bool
}

// Option customizes a Manager.
type Option func(*Manager)

// WithVolumeHandler registers a callback fired when the polled volume
// differs from the last observed value.
func WithVolumeHandler(fn func(float64)) Option {
	return func(m *Manager) { m.onVolume = fn }
}

// New creates a Manager. Timers do not run until EnterBackground.
func New(p Player, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		player: p,
		cfg:    cfg.withDefaults(),
		log:    logrus.WithField("component", "continuity"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnterBackground starts the liveness, volume and snapshot timers under a
// fresh background token. Calling it while already backgrounded is a no-op.
func (m *Manager) EnterBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.abandoned = false
	stop := make(chan struct{})
	m.stop = stop
	m.log.Debug("entering background")
	go m.run(stop)
}

// EnterForeground stops the background timers. A snapshot is written if
// playback is active so foreground/background flips never lose position.
func (m *Manager) EnterForeground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop == nil {
		return
	}
	close(m.stop)
	m.stop = nil
	m.log.Debug("entering foreground")
	if m.player.State().IsActive() {
		if err := m.player.SaveState(); err != nil {
			m.log.Warn("snapshot on foreground failed: ", err)
		}
	}
}

// Abandoned reports whether the last background period ran out its token.
func (m *Manager) Abandoned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.abandoned
}

// Close stops any running timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *Manager) run(stop chan struct{}) {
	liveness := time.NewTicker(m.cfg.LivenessInterval)
	defer liveness.Stop()
	volume := time.NewTicker(m.cfg.VolumeInterval)
	defer volume.Stop()
	snapshot := time.NewTicker(m.cfg.SnapshotInterval)
	defer snapshot.Stop()
	lifetime := time.NewTimer(m.cfg.BackgroundLifetime)
	defer lifetime.Stop()

	lastVolume := m.player.Volume()

	for {
		select {
		case <-liveness.C:
			if m.player.State() == engine.StatePlaying {
				m.player.CheckEndOfTrack()
			}

		case <-volume.C:
			if v := m.player.Volume(); v != lastVolume {
				lastVolume = v
				if m.onVolume != nil {
					m.onVolume(v)
				}
			}

		case <-snapshot.C:
			if m.player.State() == engine.StatePlaying {
				if err := m.player.SaveState(); err != nil {
					m.log.Warn("background snapshot failed: ", err)
				}
			}

		case <-lifetime.C:
			// Token expiring: one last save, then give up continuity
			// rather than getting killed mid-write.
			if err := m.player.SaveState(); err != nil {
				m.log.Warn("final background snapshot failed: ", err)
			}
			m.mu.Lock()
			if m.stop == stop {
				m.stop = nil
			}
			m.abandoned = true
			m.mu.Unlock()
			m.log.Debug("background token expired, continuity abandoned")
			return

		case <-stop:
			return
		}
	}
}
