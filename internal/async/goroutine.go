// Package async starts background goroutines that must not take the
// process down when they panic.
package async

import "runtime/debug"

// Logger receives panic reports. Any logger with a printf-style Error
// method satisfies it.
type Logger interface {
	Error(format string, args ...any)
}

// Go runs fn on its own goroutine. A panic inside fn is logged with the
// goroutine name and stack, then swallowed.
func Go(logger Logger, name string, fn func()) {
	go func() {
		defer func() {
			r := recover()
			if r == nil || logger == nil {
				return
			}
			if name == "" {
				name = "unnamed"
			}
			logger.Error("Goroutine %s panicked: %v\n%s", name, r, debug.Stack())
		}()
		fn()
	}()
}
