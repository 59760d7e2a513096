package core

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Settings contains all configurable properties of a Pinger and its reply
// buffer pool.
type Settings struct {
	// TTL is the IP Time to Live set on outgoing echo requests.
	TTL int

	// DontFragment sets the IP Don't Fragment bit on outgoing requests.
	DontFragment bool

	// Timeout is how long a request may wait for its reply.
	Timeout time.Duration

	// PoolSize is the number of reply buffer slots, which bounds how many
	// async requests can be in flight at once.
	PoolSize int

	// SlotCapacity is the byte size of each reply buffer slot. It must be
	// at least MinSlotCapacity and covers the reply header, driver error
	// space and the echoed payload.
	SlotCapacity int

	// BlockOnExhaustion selects the pool policy when every slot is leased:
	// true blocks the issuing call until a slot frees, false fails the
	// call with ErrNoBufferAvailable.
	BlockOnExhaustion bool

	// LoggingLevel is the logrus level used by the pinger's logger.
	LoggingLevel uint32
}

// DefaultSettings returns the default settings for a pinger, change as you
// wish. Defaults mirror the Windows helper-driver conventions: TTL 255, DF
// off, 2s timeout.
func DefaultSettings() *Settings {
	return &Settings{
		TTL:               255,
		DontFragment:      false,
		Timeout:           2 * time.Second,
		PoolSize:          4,
		SlotCapacity:      MinSlotCapacity() + 64,
		BlockOnExhaustion: false,
		LoggingLevel:      uint32(log.WarnLevel),
	}
}

func (s *Settings) validate() error {
	if s.TTL < 1 || s.TTL > 255 {
		return fmt.Errorf("invalid TTL %d, must be within [1, 255]", s.TTL)
	}

	if s.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s, must be positive", s.Timeout)
	}

	if s.PoolSize < 1 {
		return fmt.Errorf("invalid pool size %d, must be at least 1", s.PoolSize)
	}

	if s.SlotCapacity < MinSlotCapacity() {
		return fmt.Errorf("invalid slot capacity %d, must be at least %d",
			s.SlotCapacity, MinSlotCapacity())
	}

	return nil
}
