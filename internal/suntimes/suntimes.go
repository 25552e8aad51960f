package suntimes

import (
	"errors"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// ErrNoSunEvent is returned for polar day or night when the sun does not
// cross the horizon on the requested date.
var ErrNoSunEvent = errors.New("no sunrise or sunset on this date")

// Source computes the sun boundaries of a local calendar date. Returned
// instants are in UTC.
type Source interface {
	Sunrise(date time.Time, lat, lon float64, loc *time.Location) (time.Time, error)
	Sunset(date time.Time, lat, lon float64, loc *time.Location) (time.Time, error)
}

type Astronomical struct{}

func (Astronomical) Sunrise(date time.Time, lat, lon float64, loc *time.Location) (time.Time, error) {
	rise, _, err := astronomical(date, lat, lon, loc)
	return rise, err
}

func (Astronomical) Sunset(date time.Time, lat, lon float64, loc *time.Location) (time.Time, error) {
	_, set, err := astronomical(date, lat, lon, loc)
	return set, err
}

func astronomical(date time.Time, lat, lon float64, loc *time.Location) (time.Time, time.Time, error) {
	local := date.In(loc)
	rise, set := sunrise.SunriseSunset(lat, lon, local.Year(), local.Month(), local.Day())
	if rise.IsZero() || set.IsZero() {
		return time.Time{}, time.Time{}, ErrNoSunEvent
	}
	return rise.UTC(), set.UTC(), nil
}

// Fixed returns the same local wall-clock sunrise and sunset every day.
type Fixed struct {
	SunriseHour int
	SunsetHour  int
}

func DefaultFixed() Fixed {
	return Fixed{SunriseHour: 6, SunsetHour: 18}
}

func (f Fixed) Sunrise(date time.Time, _, _ float64, loc *time.Location) (time.Time, error) {
	return atHour(date, f.SunriseHour, loc), nil
}

func (f Fixed) Sunset(date time.Time, _, _ float64, loc *time.Location) (time.Time, error) {
	return atHour(date, f.SunsetHour, loc), nil
}

func atHour(date time.Time, hour int, loc *time.Location) time.Time {
	local := date.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc).UTC()
}

// ForName picks a source by its config name. Anything other than "fixed"
// uses the astronomical calculation.
func ForName(name string) Source {
	if name == "fixed" {
		return DefaultFixed()
	}
	return Astronomical{}
}
