package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // embedded zone database

	"github.com/guildworks/toolledger/loans"
)

// Location loads the configured time zone, which is used to display loan timestamps.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", c.TimeZone, err)
	}

	return loc, nil
}

// Clock returns a loans.Clock that reads the wall clock in the configured time zone.
func (c Config) Clock() (loans.Clock, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}

	return loans.ClockFunc(func() time.Time { return time.Now().In(loc) }), nil
}
