package safe

import (
	"NioBoard/logger"
)

// Go starts a goroutine that recovers from panic, so background loops
// (sweeper, fanout workers, bus consumers) cannot take the process down.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] %s panic recovered: %v", name, r)
			}
		}()
		f()
	}()
}
