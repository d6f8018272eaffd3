// Package eq500x drives the EQ500X equatorial mount over its LX200-style
// serial protocol. The mount cannot point precisely on its own: its
// built-in go-to runs at full speed only and overshoots by several
// degrees, so the driver closes the loop itself, polling the position and
// stepping through a cascade of slew rates until the target is reached to
// within the wire format's resolution.
package eq500x

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/comptonizing/eq500x/site"
	"github.com/comptonizing/eq500x/telescope"
)

// positionAdvancer is satisfied by transports that simulate the mount and
// need driving between polls.
type positionAdvancer interface {
	AdvancePosition(east, west, north, south bool, rate float64)
}

// convergence is the per-slew state of the centering procedure: which
// direction commands are live on each axis, how many polls remain before
// giving up, and the cascade bucket the previous poll ran under (-1 before
// the first poll).
type convergence struct {
	east, west, north, south bool
	countdown                int
	bucket                   int
}

func (c convergence) moving() bool {
	return c.east || c.west || c.north || c.south
}

// Mount is one session against an EQ500X. Its poll loop, the centering
// procedure and the command surface all share the position bookkeeping, so
// every entry point locks the session.
type Mount struct {
	transport      Transport
	site           *site.Site
	statusCallback telescope.StatusCallback

	mu       sync.Mutex
	current  MechanicalPoint
	target   MechanicalPoint
	pierSide telescope.PierSide
	state    telescope.TrackState
	conv     convergence
	interval time.Duration
}

var (
	_ telescope.Mount           = (*Mount)(nil)
	_ telescope.LocationUpdater = (*Mount)(nil)
)

// New wraps a transport into a mount session. The status callback may be
// nil; when set it receives a snapshot after every position update and
// state transition.
func New(t Transport, s *site.Site, statusCallback telescope.StatusCallback) *Mount {
	return &Mount{
		transport:      t,
		site:           s,
		statusCallback: statusCallback,
		pierSide:       telescope.PierUnknown,
		conv:           convergence{bucket: -1},
		interval:       time.Second,
	}
}

// Status is an immutable snapshot of a mount session. RA values are hours,
// DEC values signed degrees.
type Status struct {
	RA        float64
	DEC       float64
	TargetRA  float64
	TargetDEC float64
	PierSide  telescope.PierSide
	State     telescope.TrackState
	// Moving reports whether any direction command is live on the mount.
	Moving bool
	// AtPark reports whether the mount sits at its power-on attitude.
	AtPark bool
}

func (s Status) RightAscension() float64 { return s.RA }

func (s Status) Declination() float64 { return s.DEC }

func (s Status) TrackState() telescope.TrackState { return s.State }

func (s Status) Clone() telescope.Status { return s }

// skyDegrees folds a mechanical declination into the familiar signed
// range: the mount's axis counts [0,256) with values beyond 128 on the far
// side of the pole.
func skyDegrees(mech float64) float64 {
	if mech > 128 {
		return mech - 256
	}
	return mech
}

func (m *Mount) statusLocked() Status {
	return Status{
		RA:        m.current.RA(),
		DEC:       skyDegrees(m.current.DEC()),
		TargetRA:  m.target.RA(),
		TargetDEC: skyDegrees(m.target.DEC()),
		PierSide:  m.pierSide,
		State:     m.state,
		Moving:    m.conv.moving(),
		AtPark:    m.current.AtParkingPosition(),
	}
}

func (m *Mount) notifyLocked() {
	if m.statusCallback != nil {
		m.statusCallback(m.statusLocked())
	}
}

// Status returns a snapshot of the session state.
func (m *Mount) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Interval returns how long the poll loop should wait before the next
// Tick. The centering procedure shortens it while fine rates need frequent
// position fixes.
func (m *Mount) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Handshake probes the link by reading the position twice, 50ms apart. The
// first read may fail while the mount is still waking up; the second must
// succeed.
func (m *Mount) Handshake() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < 2; i++ {
		if err := m.transport.ReadPosition(&m.current); err != nil && i > 0 {
			return fmt.Errorf("mount not answering: %w", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	m.notifyLocked()
	return nil
}

// Tick polls the mount once: it refreshes the current position and, while
// a slew is in progress, runs one step of the centering procedure. Callers
// must not overlap Ticks; Interval says how long to wait before the next
// one.
func (m *Mount) Tick() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.transport.ReadPosition(&m.current); err != nil {
		return fmt.Errorf("reading position: %w", err)
	}
	if m.state == telescope.StateSlewing {
		if err := m.center(); err != nil {
			return err
		}
	}
	m.notifyLocked()
	return nil
}

// Run polls the mount until ctx is canceled, re-arming the timer with
// whatever interval the centering procedure asks for. A failed tick is
// logged and polling carries on; simply calling again is the loop's whole
// retry policy.
func (m *Mount) Run(ctx context.Context) error {
	timer := time.NewTimer(m.Interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if err := m.Tick(); err != nil {
			log.Errorf("poll: %v", err)
		}
		timer.Reset(m.Interval())
	}
}

// center runs one step of the closed pointing loop. Both axes share one
// physical rate, so the coarser of the two per-axis cascade buckets
// governs the step; only axes whose own bucket matches the governing one
// get their direction commands adjusted. Stops are written before starts
// and the whole step goes out as a single write.
func (m *Mount) center() error {
	raDelta := m.current.RADegreesTo(m.target)
	decDelta := m.current.DECDegreesTo(m.target)

	if math.Abs(raDelta) < RAGranularity && math.Abs(decDelta) < DECGranularity {
		// On target to within one encoding step: halt and drop back to
		// guide rate. The position test already passed, so a failed halt
		// write must not turn the finished slew into an error.
		if err := m.transport.Send(":Q#:RG#"); err != nil {
			log.Errorf("stopping after slew: %v", err)
		}
		m.conv = convergence{bucket: -1}
		m.interval = time.Second
		m.state = telescope.StateTracking
		log.Infof("slew complete at RA %.5fh DEC %.4f°, tracking", m.target.RA(), skyDegrees(m.target.DEC()))
		return nil
	}

	raBucket := rateFor(math.Abs(raDelta))
	decBucket := rateFor(math.Abs(decDelta))
	bucket := raBucket
	if decBucket > bucket {
		bucket = decBucket
	}
	log.Debugf("centering deltas (%.6f°,%.6f°) under %s", raDelta, decDelta, slewRates[bucket].Command)

	var cmd string
	if bucket != m.conv.bucket {
		cmd += slewRates[bucket].Command
		if m.conv.bucket >= 0 && bucket < m.conv.bucket {
			// Stepping down to a finer bucket is progress, so the loop
			// budget restarts.
			m.conv.countdown = maxConvergenceLoops
		}
		m.conv.bucket = bucket
	}

	if raBucket == bucket {
		eps := math.Max(slewRates[bucket].Epsilon, RAGranularity)
		goEast := raDelta >= eps
		goWest := raDelta <= -eps
		if m.conv.east && (!goEast || goWest) {
			cmd += ":Qe#"
			m.conv.east = false
		}
		if m.conv.west && (!goWest || goEast) {
			cmd += ":Qw#"
			m.conv.west = false
		}
		if goEast && !m.conv.east {
			cmd += ":Me#"
			m.conv.east = true
		}
		if goWest && !m.conv.west {
			cmd += ":Mw#"
			m.conv.west = true
		}
	}

	if decBucket == bucket {
		eps := math.Max(slewRates[bucket].Epsilon, DECGranularity)
		goSouth := decDelta >= eps
		goNorth := decDelta <= -eps
		if m.conv.south && (!goSouth || goNorth) {
			cmd += ":Qs#"
			m.conv.south = false
		}
		if m.conv.north && (!goNorth || goSouth) {
			cmd += ":Qn#"
			m.conv.north = false
		}
		if goSouth && !m.conv.south {
			cmd += ":Ms#"
			m.conv.south = true
		}
		if goNorth && !m.conv.north {
			cmd += ":Mn#"
			m.conv.north = true
		}
	}

	if len(cmd) > 0 {
		if err := m.transport.Send(cmd); err != nil {
			return m.stopAndFail(fmt.Errorf("centering: %w", err))
		}
	}

	if sim, ok := m.transport.(positionAdvancer); ok {
		sim.AdvancePosition(m.conv.east, m.conv.west, m.conv.north, m.conv.south, slewRates[bucket].SimRate)
	}

	if !m.conv.moving() {
		log.Debugf("centering step complete after %d polls", maxConvergenceLoops-m.conv.countdown)
	} else if m.conv.countdown--; m.conv.countdown <= 0 {
		return m.stopAndFail(fmt.Errorf("%w after %d polls", ErrConvergence, maxConvergenceLoops))
	} else {
		m.interval = slewRates[bucket].Interval
	}
	return nil
}

// stopAndFail halts all motion and drops back to tracking before
// surfacing err. Stopping the mount takes precedence over reporting: a
// failed halt write is only logged.
func (m *Mount) stopAndFail(err error) error {
	if stopErr := m.transport.Send(":Q#"); stopErr != nil {
		log.Errorf("stopping after failed slew: %v", stopErr)
	}
	m.conv = convergence{bucket: -1}
	m.interval = time.Second
	m.state = telescope.StateTracking
	m.notifyLocked()
	return err
}

// pierSideFor classifies which side of the pier serves a target RA. The
// hour angle folds into (-12,+12); the mount wants the tube west of the
// pier over (-12,-6] and [0,6), east otherwise.
func (m *Mount) pierSideFor(ra float64) telescope.PierSide {
	ha := math.Mod(m.site.LocalSiderealTime()-ra+12.0, 12.0)
	if (-12.0 < ha && ha <= -6.0) || (0.0 <= ha && ha < 6.0) {
		return telescope.PierWest
	}
	return telescope.PierEast
}

// Goto slews to a sky position, ra in hours and dec in degrees. The target
// is staged on the mount and the centering procedure takes over on
// subsequent Ticks; the mount's built-in go-to stays unused. Nothing is
// committed if staging fails.
func (m *Mount) Goto(ra, dec float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := NewMechanicalPoint(ra, dec)
	side := m.pierSideFor(ra)
	target.SetPierSide(side)

	if m.state == telescope.StateSlewing || m.conv.moving() {
		// The mount will not take a new target while moving, and needs a
		// moment to settle after the stop.
		if err := m.stopLocked(); err != nil {
			return fmt.Errorf("aborting previous slew: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := m.writeTarget(target); err != nil {
		return err
	}

	m.target = target
	m.pierSide = side
	m.conv = convergence{countdown: maxConvergenceLoops, bucket: -1}
	m.state = telescope.StateSlewing
	log.Infof("slewing to RA %.5fh DEC %.4f°, pier %s", ra, dec, side)
	m.notifyLocked()
	return nil
}

// GotoNative fires the mount's built-in go-to at a sky position. The
// built-in motion runs at full speed only and overshoots by up to five
// degrees, which is why Goto never calls this; it stays available for
// protocol completeness and bench work.
func (m *Mount) GotoNative(ra, dec float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := NewMechanicalPoint(ra, dec)
	side := m.pierSideFor(ra)
	target.SetPierSide(side)
	if err := m.writeTarget(target); err != nil {
		return err
	}
	if err := m.transport.Send(":MS#"); err != nil {
		return fmt.Errorf("starting native goto: %w", err)
	}
	reply, err := m.transport.ReadReply(1)
	if err != nil {
		return fmt.Errorf("starting native goto: %w", err)
	}
	if reply != "0" {
		return fmt.Errorf("%w: native goto refused with %q", ErrRejected, reply)
	}
	m.target = target
	m.pierSide = side
	m.notifyLocked()
	return nil
}

// Sync tells the mount it is currently aimed at the given sky position,
// without commanding motion. The mount's own sync handshake is tried
// first; when it rejects or answers unusably the driver falls back to
// rewriting its position bookkeeping locally and reports the result as
// assumed rather than confirmed, leaving the mount's internal state
// unverified.
func (m *Mount) Sync(ra, dec float64) (telescope.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writeTarget(NewMechanicalPoint(ra, dec)); err != nil {
		return telescope.SyncFailed, err
	}

	result := telescope.SyncAccepted
	reply, err := m.syncNative()
	if err == nil && strings.HasPrefix(reply, "No name") {
		err = fmt.Errorf("%w: sync refused with %q", ErrRejected, reply)
	}
	if err != nil {
		log.Warnf("mount did not confirm sync, updating positions locally: %v", err)
		result = telescope.SyncAssumed
	}

	m.target.SetRA(ra)
	m.target.SetDEC(dec)
	m.current.SetRA(ra)
	m.current.SetDEC(dec)
	log.Infof("synced to RA %.5fh DEC %.4f° (%s)", ra, dec, result)
	m.notifyLocked()
	return result, nil
}

func (m *Mount) syncNative() (string, error) {
	if err := m.transport.Send(":CM#"); err != nil {
		return "", err
	}
	return m.transport.ReadReply(64)
}

// Abort stops any in-flight motion and returns the mount to tracking.
func (m *Mount) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stopLocked(); err != nil {
		return err
	}
	m.conv = convergence{bucket: -1}
	m.interval = time.Second
	m.state = telescope.StateTracking
	m.notifyLocked()
	return nil
}

// stopLocked halts all motion and clears the direction bookkeeping. The
// stop has to reach the mount: on a write failure the flags stay as they
// were so a later abort retries the full stop.
func (m *Mount) stopLocked() error {
	if err := m.transport.Send(":Q#"); err != nil {
		return fmt.Errorf("stopping mount: %w", err)
	}
	m.conv.east, m.conv.west, m.conv.north, m.conv.south = false, false, false, false
	return nil
}

// writeTarget stages a target position on the mount, which acknowledges
// the two set commands with one byte each, '1' for accepted.
func (m *Mount) writeTarget(p MechanicalPoint) error {
	dec, err := p.FormatDEC()
	if err != nil {
		return fmt.Errorf("encoding target: %w", err)
	}
	ra := p.FormatRA()
	if err := m.transport.Send(fmt.Sprintf(":Sr%s#:Sd%s#", ra, dec)); err != nil {
		return fmt.Errorf("setting target: %w", err)
	}
	reply, err := m.transport.ReadReply(2)
	if err != nil {
		return fmt.Errorf("setting target: %w", err)
	}
	if reply != "11" {
		return fmt.Errorf("%w: target %s %s refused with %q", ErrRejected, ra, dec, reply)
	}
	return nil
}

// UpdateLocation stores a new observer location. A mount still sitting at
// its power-on attitude gets its RA synced to hour angle -6h so the
// bookkeeping starts out coherent with the new site.
func (m *Mount) UpdateLocation(latitude, longitude float64) error {
	m.site.SetLocation(latitude, longitude)

	m.mu.Lock()
	atPark := m.current.AtParkingPosition()
	dec := m.current.DEC()
	m.mu.Unlock()
	if !atPark {
		return nil
	}

	lst := m.site.LocalSiderealTime()
	log.Infof("mount is parked, syncing RA to LST-6h (%.5fh)", lst-6.0)
	if _, err := m.Sync(lst-6.0, dec); err != nil {
		return fmt.Errorf("syncing parked mount: %w", err)
	}
	return nil
}
