// Command tide is a headless gapless music player. It scans the given
// paths into a play queue, renders through the best-fitting backend and
// exposes itself on the session bus as an MPRIS media player, so any
// desktop media surface can drive it. With no arguments it restores the
// previous session's queue and position.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/llehouerou/tide/internal/audiosession"
	"github.com/llehouerou/tide/internal/backend"
	"github.com/llehouerou/tide/internal/config"
	"github.com/llehouerou/tide/internal/continuity"
	"github.com/llehouerou/tide/internal/engine"
	"github.com/llehouerou/tide/internal/library"
	"github.com/llehouerou/tide/internal/nowplaying"
	"github.com/llehouerou/tide/internal/persist"
	"github.com/llehouerou/tide/internal/queue"
	"github.com/llehouerou/tide/internal/track"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type flags struct {
	shuffle   bool
	repeat    string
	volume    float64
	noRestore bool
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "tide [path ...]",
		Short: "Headless music player with an MPRIS control surface",
		Long: `tide plays the audio files found under the given paths and publishes
itself as an MPRIS media player on the session bus. Playback is controlled
through any MPRIS client (playerctl, desktop media keys, ...).

Without arguments the previous session's queue and position are restored.
SIGUSR1 switches to background continuity mode, SIGUSR2 back to foreground.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args, f)
		},
	}
	cmd.Flags().BoolVar(&f.shuffle, "shuffle", false, "shuffle the queue before playing")
	cmd.Flags().StringVar(&f.repeat, "repeat", "off", "repeat mode: off, queue or song")
	cmd.Flags().Float64Var(&f.volume, "volume", 1.0, "initial volume (0.0 to 1.0)")
	cmd.Flags().BoolVar(&f.noRestore, "no-restore", false, "do not restore the previous session")
	return cmd
}

func run(args []string, f flags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	log := logrus.WithField("component", "main")

	repeat, err := parseRepeat(f.repeat)
	if err != nil {
		return err
	}

	store, err := persist.Open()
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	session := audiosession.New(audiosession.Config{
		MaxSampleRate: cfg.Audio.MaxSampleRate,
		BufferLen:     time.Duration(cfg.Audio.BufferMs) * time.Millisecond,
	})
	defer session.Close()

	selector := backend.NewSelector(session, backend.EQ{
		LowDB:     cfg.Equalize.LowDB,
		HighDB:    cfg.Equalize.HighDB,
		Crossover: cfg.Equalize.CrossoverHz,
	})

	lib := library.New()
	eng := engine.New(engine.Options{
		Session:          session,
		SessionEvents:    session.Events(),
		Opener:           selector,
		Store:            lib,
		Materializer:     library.LocalMaterializer{},
		States:           store,
		PositionPoll:     cfg.PositionPoll(),
		SnapshotInterval: cfg.SnapshotInterval(),
	})
	defer eng.Close()

	surface, err := nowplaying.New(eng, artworkProvider(log))
	if err != nil {
		log.Warn("now-playing surface unavailable: ", err)
	} else {
		defer surface.Close()
	}

	mgr := continuity.New(eng, continuity.Config{
		LivenessInterval:   cfg.LivenessPoll(),
		VolumeInterval:     cfg.VolumePoll(),
		SnapshotInterval:   cfg.SnapshotInterval(),
		BackgroundLifetime: cfg.BackgroundBudget(),
	}, continuity.WithVolumeHandler(func(v float64) {
		log.Debugf("volume changed to %.2f", v)
	}))
	defer mgr.Close()

	eng.SetVolume(f.volume)

	if len(args) > 0 {
		tracks, err := scanPaths(lib, args)
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			return errors.New("no playable files found")
		}
		log.Infof("queued %d tracks", len(tracks))
		if err := eng.PlayTracks(tracks, 0); err != nil {
			return err
		}
		if f.shuffle {
			eng.SetShuffle(true)
		}
		eng.SetRepeatMode(repeat)
	} else if !f.noRestore {
		if err := eng.Restore(context.Background()); err != nil {
			log.Warn("state restore failed: ", err)
		} else if t := eng.CurrentTrack(); t != nil {
			log.Infof("restored %q at %s, press play to resume",
				t.Title, eng.Position().Round(time.Second))
		}
	}

	waitForSignals(mgr, log)
	return nil
}

func scanPaths(lib *library.Library, paths []string) ([]track.Descriptor, error) {
	var tracks []track.Descriptor
	for _, p := range paths {
		ts, err := lib.ScanPath(p)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		tracks = append(tracks, ts...)
	}
	return tracks, nil
}

func parseRepeat(s string) (queue.RepeatMode, error) {
	switch strings.ToLower(s) {
	case "off":
		return queue.RepeatOff, nil
	case "queue":
		return queue.RepeatQueue, nil
	case "song":
		return queue.RepeatSong, nil
	}
	return queue.RepeatOff, fmt.Errorf("unknown repeat mode %q", s)
}

func artworkProvider(log *logrus.Entry) nowplaying.ArtworkProvider {
	dir := filepath.Join(xdg.CacheHome, "tide", "artwork")
	cache, err := nowplaying.NewArtworkCache(dir)
	if err != nil {
		log.Warn("artwork cache unavailable: ", err)
		return nowplaying.NoArtwork{}
	}
	return cache
}

func waitForSignals(mgr *continuity.Manager, log *logrus.Entry) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	lifecycle := make(chan os.Signal, 2)
	notifyLifecycle(lifecycle)

	for {
		select {
		case <-quit:
			log.Info("shutting down")
			return
		case sig := <-lifecycle:
			if isBackgroundSignal(sig) {
				mgr.EnterBackground()
			} else {
				mgr.EnterForeground()
			}
		}
	}
}
