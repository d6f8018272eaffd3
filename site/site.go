// Package site models the observer's geographic location and the sidereal
// clock derived from it.
package site

import (
	"math"
	"sync"
	"time"
)

// Site is an observer location. Longitude is stored positive east.
type Site struct {
	mu        sync.Mutex
	latitude  float64
	longitude float64
	clock     func() time.Time
}

func New(latitude, longitude float64) *Site {
	s := &Site{clock: time.Now}
	s.SetLocation(latitude, longitude)
	return s
}

// SetLocation moves the site. Longitudes above 180° arrive from clients
// counting a full eastward turn and fold into the (-180°,180°] range.
func (s *Site) SetLocation(latitude, longitude float64) {
	if longitude > 180 {
		longitude -= 360
	}
	s.mu.Lock()
	s.latitude, s.longitude = latitude, longitude
	s.mu.Unlock()
}

func (s *Site) Latitude() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latitude
}

func (s *Site) Longitude() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.longitude
}

// LocalSiderealTime returns the mean sidereal time at the site in hours,
// [0,24).
func (s *Site) LocalSiderealTime() float64 {
	s.mu.Lock()
	longitude := s.longitude
	clock := s.clock
	s.mu.Unlock()
	return normalizeHours(greenwichSiderealTime(clock()) + longitude/15.0)
}

// greenwichSiderealTime returns Greenwich mean sidereal time in hours for
// an instant, from the sidereal rate against the J2000 epoch.
func greenwichSiderealTime(t time.Time) float64 {
	d := julianDate(t) - 2451545.0
	return normalizeHours(18.697374558 + 24.06570982441908*d)
}

func julianDate(t time.Time) float64 {
	return float64(t.UnixNano())/(86400.0*1e9) + 2440587.5
}

func normalizeHours(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	return h
}
