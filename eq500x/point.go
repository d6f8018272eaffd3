package eq500x

import (
	"fmt"
	"math"

	"github.com/comptonizing/eq500x/telescope"
)

const (
	// OneDegree, ArcMinute and ArcSecond express angles in degrees of arc.
	OneDegree = 1.0
	ArcMinute = OneDegree / 60.0
	ArcSecond = OneDegree / 3600.0

	// RAGranularity and DECGranularity are the smallest position steps the
	// wire format can express per axis, in degrees of sky arc. One RA tick
	// is a second of hour angle, fifteen times coarser than a DEC tick.
	RAGranularity  = 15.0 * ArcSecond
	DECGranularity = 1.0 * ArcSecond
)

const (
	raModulus  = 24 * 3600     // RA ticks per revolution
	decModulus = 256 * 3600    // DEC ticks per revolution
	decPole    = 90 * 3600     // DEC tick value at the celestial pole
	halfTurnRA = raModulus / 2 // 12h, RA wrap threshold
)

// MechanicalPoint is a mount-native position: RA counted in seconds of hour
// angle, DEC counted in arcseconds with the pole pinned at +90°, both kept
// reduced to one revolution. The pier-side tag selects the sign and offset
// conventions the mount applies to its position strings; it does not move
// the stored ticks.
type MechanicalPoint struct {
	raTicks  int64 // [0, raModulus)
	decTicks int64 // [0, decModulus)
	pier     telescope.PierSide
}

// NewMechanicalPoint builds a point from sky-like coordinates, RA in hours
// and DEC in degrees, tagged pier east.
func NewMechanicalPoint(ra, dec float64) MechanicalPoint {
	var p MechanicalPoint
	p.SetRA(ra)
	p.SetDEC(dec)
	return p
}

// RA returns the stored right ascension in hours, [0,24).
func (p MechanicalPoint) RA() float64 { return float64(p.raTicks) / 3600.0 }

// DEC returns the stored declination in mechanical degrees, [0,256).
// Values above 128 sit on the far side of the pole.
func (p MechanicalPoint) DEC() float64 { return float64(p.decTicks) / 3600.0 }

// SetRA stores a right ascension given in hours, wrapping it into [0,24)
// and rounding to the tick. It returns the value actually stored.
func (p *MechanicalPoint) SetRA(hours float64) float64 {
	t := int64(math.Round(math.Mod(hours+24.0, 24.0) * 3600.0))
	p.raTicks = ((t % raModulus) + raModulus) % raModulus
	return p.RA()
}

// SetDEC stores a declination given in degrees, wrapping it into [0,256)
// the way the mount's axis wraps, and rounding to the tick. It returns the
// value actually stored.
func (p *MechanicalPoint) SetDEC(degrees float64) float64 {
	t := int64(math.Round(math.Mod(degrees+256.0, 256.0) * 3600.0))
	p.decTicks = ((t % decModulus) + decModulus) % decModulus
	return p.DEC()
}

func (p MechanicalPoint) PierSide() telescope.PierSide { return p.pier }

func (p *MechanicalPoint) SetPierSide(side telescope.PierSide) { p.pier = side }

// FormatRA renders the position's RA half of the wire format, "HH:MM:SS".
// A pier-west position reads twelve hours ahead on the mount's axis.
func (p MechanicalPoint) FormatRA() string {
	offset := int64(0)
	if p.pier == telescope.PierWest {
		offset = 12
	}
	hours := (offset + 24 + p.raTicks/3600) % 24
	return fmt.Sprintf("%02d:%02d:%02d", hours, (p.raTicks/60)%60, p.raTicks%60)
}

// ParseRA reads an "HH:MM:SS" wire string, undoing the pier-side offset the
// mount applies on its RA axis.
func (p *MechanicalPoint) ParseRA(s string) error {
	if len(s) < 8 || s[2] != ':' || s[5] != ':' {
		return &ParseError{Want: "HH:MM:SS", Got: s}
	}
	hours, ok1 := twoDigits(s[0:2])
	minutes, ok2 := twoDigits(s[3:5])
	seconds, ok3 := twoDigits(s[6:8])
	if !ok1 || !ok2 || !ok3 {
		return &ParseError{Want: "HH:MM:SS", Got: s}
	}
	offset := int64(0)
	if p.pier == telescope.PierWest {
		offset = -12 * 3600
	}
	p.raTicks = (offset + raModulus + int64(hours%24)*3600 + int64(minutes)*60 + int64(seconds)) % raModulus
	return nil
}

// FormatDEC renders the position's DEC half of the wire format, "sDD:MM:SS".
// The mount counts declination as a signed offset from the pole, flipping
// the sign on pier east, and squeezes degree magnitudes of 100 and above
// into a single byte by extending the tens digit past '9': ':' is 10, ';'
// 11, and so on through 'I' for 25. Degree magnitudes above 255 do not fit
// the format.
func (p MechanicalPoint) FormatDEC() (string, error) {
	var value int64
	if p.pier == telescope.PierEast {
		value = decPole - p.decTicks
	} else {
		value = p.decTicks - decPole
	}
	degrees := (value / 3600) % 256
	if degrees < -255 || 255 < degrees {
		return "", fmt.Errorf("declination %d exceeds the format's 255 degree bound", degrees)
	}
	sign := byte('-')
	if value >= 0 {
		sign = '+'
	}
	mag := degrees
	if mag < 0 {
		mag = -mag
	}
	value = abs64(value)
	return fmt.Sprintf("%c%c%c:%02d:%02d", sign, byte('0'+mag/10), byte('0'+mag%10), (value/60)%60, value%60), nil
}

// ParseDEC reads an "sDD:MM:SS" wire string. The tens digit accepts the
// extended character set emitted by FormatDEC, and the two separator bytes
// carry no information (the mount pad shows '*' and '\'' there while the
// serial replies use ':').
func (p *MechanicalPoint) ParseDEC(s string) error {
	if len(s) < 9 {
		return &ParseError{Want: "sDD:MM:SS", Got: s}
	}
	high := s[1]
	if high < '0' || 'I' < high {
		return &ParseError{Want: "sDD:MM:SS", Got: s}
	}
	if s[2] < '0' || '9' < s[2] {
		return &ParseError{Want: "sDD:MM:SS", Got: s}
	}
	minutes, ok1 := twoDigits(s[4:6])
	seconds, ok2 := twoDigits(s[7:9])
	if !ok1 || !ok2 {
		return &ParseError{Want: "sDD:MM:SS", Got: s}
	}
	degrees := int64(high-'0')*10 + int64(s[2]-'0')
	sgn := int64(+1)
	if s[0] == '-' {
		sgn = -1
	}
	orientation := int64(+1)
	if p.pier == telescope.PierEast {
		orientation = -1
	}
	t := decPole + orientation*sgn*(degrees*3600+int64(minutes)*60+int64(seconds))
	p.decTicks = ((t % decModulus) + decModulus) % decModulus
	return nil
}

// RADegreesTo returns the signed RA separation from p to o in degrees of
// sky arc, wrapped to the short way around, (-180°,+180°].
func (p MechanicalPoint) RADegreesTo(o MechanicalPoint) float64 {
	delta := o.raTicks - p.raTicks
	if delta > halfTurnRA {
		delta -= raModulus
	}
	if delta < -halfTurnRA {
		delta += raModulus
	}
	return float64(delta) * 15.0 / 3600.0
}

// DECDegreesTo returns the signed DEC separation from p to o in degrees.
// The DEC axis is treated as linear, not circular.
func (p MechanicalPoint) DECDegreesTo(o MechanicalPoint) float64 {
	return float64(o.decTicks-p.decTicks) / 3600.0
}

// DistanceTo combines the two axis separations euclideanly. This is not a
// spherical angular separation and is only suitable for coarse magnitude
// checks.
func (p MechanicalPoint) DistanceTo(o MechanicalPoint) float64 {
	return math.Hypot(p.RADegreesTo(o), p.DECDegreesTo(o))
}

// Equal reports whether two positions agree to within one wire-format step
// on each axis, on the same pier side.
func (p MechanicalPoint) Equal(o MechanicalPoint) bool {
	if p.pier != o.pier {
		return false
	}
	return math.Abs(p.RADegreesTo(o)) < RAGranularity &&
		math.Abs(p.DECDegreesTo(o)) < DECGranularity
}

// AtParkingPosition reports whether the position is the mount's power-on
// attitude, RA 0 with the tube aimed at the pole.
func (p MechanicalPoint) AtParkingPosition() bool {
	return p.Equal(NewMechanicalPoint(0, 90))
}

func twoDigits(s string) (int, bool) {
	if len(s) < 2 || s[0] < '0' || '9' < s[0] || s[1] < '0' || '9' < s[1] {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
