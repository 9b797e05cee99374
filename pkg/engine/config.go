package engine

import "time"

// Config holds configuration for the engine.
type Config struct {
	// SaveTimeout bounds how long persisting a finished run may take.
	// Saving is detached from the request context so a client that
	// disconnects still leaves a record. Zero means 5 seconds.
	SaveTimeout time.Duration
}

func (c Config) saveTimeout() time.Duration {
	if c.SaveTimeout <= 0 {
		return 5 * time.Second
	}
	return c.SaveTimeout
}
