// Package telescope defines the device-independent surface of a telescope
// mount driver: the operations a control frontend may invoke and the status
// snapshots a driver publishes back.
package telescope

// Mount is a pointing device that accepts sky coordinates.
// RA is in hours [0,24), DEC in degrees.
type Mount interface {
	Goto(ra, dec float64) error
	Sync(ra, dec float64) (SyncResult, error)
	Abort() error
}

type StatusCallback func(status Status)

type Status interface {
	RightAscension() float64
	Declination() float64
	TrackState() TrackState

	Clone() Status
}

// LocationUpdater is implemented by mounts that want to know when the
// observer location changes.
type LocationUpdater interface {
	UpdateLocation(latitude, longitude float64) error
}

// TrackState is the motion state of the mount.
type TrackState int

const (
	StateTracking TrackState = iota
	StateSlewing
)

func (s TrackState) String() string {
	switch s {
	case StateTracking:
		return "Tracking"
	case StateSlewing:
		return "Slewing"
	}
	return "Unknown"
}

// PierSide tells which side of the pier the optical tube sits on.
// On a German equatorial the same sky position reads differently on the
// mount's axes depending on pier side.
type PierSide int

const (
	PierEast PierSide = iota
	PierWest
	PierUnknown
)

func (p PierSide) String() string {
	switch p {
	case PierWest:
		return "West"
	case PierEast:
		return "East"
	}
	return "Unknown"
}

// SyncResult reports how a Sync was acknowledged.
type SyncResult int

const (
	// SyncFailed means no sync happened at all.
	SyncFailed SyncResult = iota
	// SyncAccepted means the mount confirmed the sync.
	SyncAccepted
	// SyncAssumed means the mount gave no usable confirmation and only the
	// driver's position bookkeeping was updated.
	SyncAssumed
)

func (r SyncResult) String() string {
	switch r {
	case SyncAccepted:
		return "Accepted"
	case SyncAssumed:
		return "Assumed"
	}
	return "Failed"
}
