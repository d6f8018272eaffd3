package eq500x

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Simulator is a Transport backed by a virtual mount instead of hardware.
// It answers the same wire protocol: set-target commands stage a target
// and acknowledge per field, sync adopts the staged target, position
// queries report the virtual axes. Motion and rate commands are accepted
// silently; the virtual mount only moves when the centering procedure
// drives it through AdvancePosition, so simulated runs stay deterministic
// under an injected clock.
type Simulator struct {
	mu      sync.Mutex
	ra, dec float64 // axis accumulators, hours and mechanical degrees
	pos     MechanicalPoint
	target  MechanicalPoint
	replies []byte
	sent    []string
	last    time.Time
	now     func() time.Time
}

// NewSimulator powers on a virtual mount in its parking attitude, RA 0
// with the tube at the pole.
func NewSimulator() *Simulator {
	return &Simulator{
		ra:  0,
		dec: 90,
		pos: NewMechanicalPoint(0, 90),
		now: time.Now,
	}
}

func (s *Simulator) Send(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range strings.Split(cmd, "#") {
		if c != "" {
			s.handle(c)
		}
	}
	return nil
}

func (s *Simulator) handle(c string) {
	s.sent = append(s.sent, c+"#")
	switch {
	case strings.HasPrefix(c, ":Sr"):
		s.reply(ack(s.target.ParseRA(c[3:])))
	case strings.HasPrefix(c, ":Sd"):
		s.reply(ack(s.target.ParseDEC(c[3:])))
	case c == ":CM":
		s.ra, s.dec = s.target.RA(), s.target.DEC()
		s.pos = s.target
		s.reply("Synced#")
	case c == ":MS":
		// The built-in go-to accepts the target but this mount never
		// moves on its own.
		s.reply("0")
	case c == ":GR":
		s.reply(s.pos.FormatRA() + "#")
	case c == ":GD":
		if dec, err := s.pos.FormatDEC(); err == nil {
			s.reply(dec + "#")
		}
	case c == ":Me", c == ":Mw", c == ":Mn", c == ":Ms",
		c == ":Qe", c == ":Qw", c == ":Qn", c == ":Qs", c == ":Q",
		c == ":RG", c == ":RC", c == ":RM", c == ":RS":
	default:
		log.Debugf("simulated mount ignoring %q", c)
	}
}

func ack(err error) string {
	if err != nil {
		return "0"
	}
	return "1"
}

func (s *Simulator) reply(text string) {
	s.replies = append(s.replies, text...)
}

// ReadReply consumes queued reply bytes with the same framing the serial
// port applies: '#' ends a reply early, max bytes end it late, and an
// empty queue is the simulated equivalent of a timeout.
func (s *Simulator) ReadReply(max int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := 0; n < len(s.replies) && n < max; n++ {
		if s.replies[n] == '#' {
			reply := string(s.replies[:n])
			s.replies = s.replies[n+1:]
			return reply, nil
		}
	}
	if len(s.replies) < max {
		return "", fmt.Errorf("simulated mount has no reply pending")
	}
	reply := string(s.replies[:max])
	s.replies = s.replies[max:]
	return reply, nil
}

func (s *Simulator) ReadPosition(p *MechanicalPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.raTicks = s.pos.raTicks
	p.decTicks = s.pos.decTicks
	return nil
}

// AdvancePosition moves the virtual mount the way the real one drifts
// between polls: every active direction runs at the given rate, in degrees
// of sky arc per second, for the time elapsed since the previous call. The
// first call only starts the clock.
func (s *Simulator) AdvancePosition(east, west, north, south bool, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.last.IsZero() {
		dt := now.Sub(s.last).Seconds()
		if east {
			s.ra += rate * dt / 15.0
		}
		if west {
			s.ra -= rate * dt / 15.0
		}
		if north {
			s.dec -= rate * dt
		}
		if south {
			s.dec += rate * dt
		}
	}
	s.last = now
	s.pos.SetRA(s.ra)
	s.pos.SetDEC(s.dec)
}
