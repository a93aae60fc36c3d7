package ports

import "time"

// Policy paces the poll loop.
type Policy struct {
	Interval     time.Duration `yaml:"interval"`      // delay after a completed cycle
	FailureDelay time.Duration `yaml:"failure_delay"` // delay after a transport, decode or persist failure
}
