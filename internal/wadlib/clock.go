package wadlib

import (
	"time"

	"github.com/google/uuid"
)

// Clock stamps captured play sessions. Stored sessions are named by their
// capture time, so tests pin it to a fixed instant.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator names the gameplay log of each engine run started by Play.
type IDGenerator interface {
	New() string
}

// SessionIDs hands out version 7 UUIDs, so the ID of a later run sorts after
// an earlier one. A random UUID is used if the time-ordered one fails.
type SessionIDs struct{}

func (SessionIDs) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// now is the capture time in UTC.
func (s *Service) now() time.Time { return s.clock.Now().UTC() }
