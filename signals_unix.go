//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyLifecycle delivers the background/foreground toggle signals.
func notifyLifecycle(c chan<- os.Signal) {
	signal.Notify(c, syscall.SIGUSR1, syscall.SIGUSR2)
}

// isBackgroundSignal reports whether sig requests background mode.
func isBackgroundSignal(sig os.Signal) bool {
	return sig == syscall.SIGUSR1
}
