package utils

import (
	"sync"
	"time"
)

var (
	clockMu  sync.RWMutex
	location = time.Local
)

// SetLocation sets the zone used by Now. A nil location means UTC.
func SetLocation(loc *time.Location) {
	clockMu.Lock()
	defer clockMu.Unlock()
	if loc == nil {
		loc = time.UTC
	}
	location = loc
}

// SetTimeZone sets the zone used by Now by name, e.g. "Asia/Shanghai".
func SetTimeZone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	SetLocation(loc)
	return nil
}

// Now returns the current time, truncated to seconds, in the configured zone.
func Now() time.Time {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return time.Now().In(location).Truncate(time.Second)
}
