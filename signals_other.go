//go:build !unix

package main

import "os"

// notifyLifecycle is a no-op where user signals are unavailable.
func notifyLifecycle(_ chan<- os.Signal) {}

func isBackgroundSignal(_ os.Signal) bool { return false }
