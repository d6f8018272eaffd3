package eq500x

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/comptonizing/eq500x/telescope"
)

func TestFormatRA(t *testing.T) {
	for _, test := range []struct {
		ra   float64
		pier telescope.PierSide
		want string
	}{
		{0, telescope.PierEast, "00:00:00"},
		{0, telescope.PierWest, "12:00:00"},
		{13.5, telescope.PierEast, "13:30:00"},
		{13.5, telescope.PierWest, "01:30:00"},
		{6.25, telescope.PierEast, "06:15:00"},
		{23.0 + 59.0/60.0 + 59.0/3600.0, telescope.PierEast, "23:59:59"},
		{24.0, telescope.PierEast, "00:00:00"},
		{-0.5, telescope.PierEast, "23:30:00"},
	} {
		t.Run(test.want, func(t *testing.T) {
			p := NewMechanicalPoint(test.ra, 0)
			p.SetPierSide(test.pier)
			if got := p.FormatRA(); got != test.want {
				t.Errorf("formatting %gh pier %s: got %q, want %q", test.ra, test.pier, got, test.want)
			}
		})
	}
}

func TestParseRA(t *testing.T) {
	for _, test := range []struct {
		input string
		pier  telescope.PierSide
		ticks int64
	}{
		{"13:30:00", telescope.PierEast, 13*3600 + 30*60},
		{"01:30:00", telescope.PierWest, 13*3600 + 30*60},
		{"00:00:00", telescope.PierEast, 0},
		{"12:00:00", telescope.PierWest, 0},
		{"00:00:00", telescope.PierWest, 12 * 3600},
		{"23:59:59", telescope.PierEast, 24*3600 - 1},
		{"24:00:00", telescope.PierEast, 0},
	} {
		t.Run(fmt.Sprintf("%s/%s", test.input, test.pier), func(t *testing.T) {
			p := MechanicalPoint{pier: test.pier}
			if err := p.ParseRA(test.input); err != nil {
				t.Fatalf("parsing %q: %v", test.input, err)
			}
			if p.raTicks != test.ticks {
				t.Errorf("parsing %q pier %s: got %d ticks, want %d", test.input, test.pier, p.raTicks, test.ticks)
			}
		})
	}
}

func TestParseRAErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"13:30",
		"13-30-00",
		"1330:00",
		"13:3O:00",
		"x3:30:00",
	} {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			var p MechanicalPoint
			err := p.ParseRA(input)
			if err == nil {
				t.Fatalf("parsing %q: expected an error", input)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("parsing %q: got %T, want *ParseError", input, err)
			}
			if perr.Want != "HH:MM:SS" || perr.Got != input {
				t.Errorf("parsing %q: got ParseError{%q, %q}", input, perr.Want, perr.Got)
			}
		})
	}
}

func TestRARoundTrip(t *testing.T) {
	for _, pier := range []telescope.PierSide{telescope.PierEast, telescope.PierWest} {
		for hours := 0.0; hours < 24.0; hours += 0.25 {
			p := NewMechanicalPoint(hours, 0)
			p.SetPierSide(pier)
			q := MechanicalPoint{pier: pier}
			if err := q.ParseRA(p.FormatRA()); err != nil {
				t.Fatalf("re-parsing %gh pier %s: %v", hours, pier, err)
			}
			if q.raTicks != p.raTicks {
				t.Errorf("round trip of %gh pier %s: got %d ticks, want %d", hours, pier, q.raTicks, p.raTicks)
			}
		}
	}
}

func TestFormatDEC(t *testing.T) {
	for _, test := range []struct {
		dec  float64
		pier telescope.PierSide
		want string
	}{
		{90, telescope.PierEast, "+00:00:00"},
		{90, telescope.PierWest, "+00:00:00"},
		{0, telescope.PierEast, "+90:00:00"},
		{0, telescope.PierWest, "-90:00:00"},
		{105, telescope.PierEast, "-15:00:00"},
		{105, telescope.PierWest, "+15:00:00"},
		{45.5, telescope.PierEast, "+44:30:00"},
		// The sign comes from the full arcsecond offset, so positions less
		// than a degree past the pole still read negative.
		{90.5, telescope.PierEast, "-00:30:00"},
		{89.5, telescope.PierEast, "+00:30:00"},
		// Far side of the axis needs the extended tens digit.
		{-10, telescope.PierEast, "-?6:00:00"},
		{-0.5, telescope.PierEast, "-@5:30:00"},
		{-0.5, telescope.PierWest, "+@5:30:00"},
	} {
		t.Run(test.want, func(t *testing.T) {
			p := NewMechanicalPoint(0, test.dec)
			p.SetPierSide(test.pier)
			got, err := p.FormatDEC()
			if err != nil {
				t.Fatalf("formatting %g° pier %s: %v", test.dec, test.pier, err)
			}
			if got != test.want {
				t.Errorf("formatting %g° pier %s: got %q, want %q", test.dec, test.pier, got, test.want)
			}
		})
	}
}

func TestParseDEC(t *testing.T) {
	for _, test := range []struct {
		input string
		pier  telescope.PierSide
		ticks int64
	}{
		{"+00:00:00", telescope.PierEast, 90 * 3600},
		{"+00:00:00", telescope.PierWest, 90 * 3600},
		{"+90:00:00", telescope.PierEast, 0},
		{"-90:00:00", telescope.PierWest, 0},
		{"-15:00:00", telescope.PierEast, 105 * 3600},
		{"+15:00:00", telescope.PierWest, 105 * 3600},
		{"-00:30:00", telescope.PierEast, 90*3600 + 30*60},
		{"-?6:00:00", telescope.PierEast, 246 * 3600},
		{"-@5:30:00", telescope.PierEast, 255*3600 + 30*60},
		// The control pad separators differ from the serial ones; both are
		// ignored byte positions.
		{"+90*00'00", telescope.PierEast, 0},
	} {
		t.Run(fmt.Sprintf("%s/%s", test.input, test.pier), func(t *testing.T) {
			p := MechanicalPoint{pier: test.pier}
			if err := p.ParseDEC(test.input); err != nil {
				t.Fatalf("parsing %q: %v", test.input, err)
			}
			if p.decTicks != test.ticks {
				t.Errorf("parsing %q pier %s: got %d ticks, want %d", test.input, test.pier, p.decTicks, test.ticks)
			}
		})
	}
}

func TestParseDECErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"+90:00",
		"+90:00:0",
		"+J0:00:00",
		"+/0:00:00",
		"+9x:00:00",
		"+90:0x:00",
		"+90:00:x0",
	} {
		t.Run(fmt.Sprintf("%q", input), func(t *testing.T) {
			var p MechanicalPoint
			err := p.ParseDEC(input)
			if err == nil {
				t.Fatalf("parsing %q: expected an error", input)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("parsing %q: got %T, want *ParseError", input, err)
			}
		})
	}
}

func TestDECRoundTrip(t *testing.T) {
	for _, pier := range []telescope.PierSide{telescope.PierEast, telescope.PierWest} {
		for dec := 0.0; dec < 256.0; dec += 0.25 {
			p := NewMechanicalPoint(0, dec)
			p.SetPierSide(pier)
			s, err := p.FormatDEC()
			if err != nil {
				t.Fatalf("formatting %g° pier %s: %v", dec, pier, err)
			}
			q := MechanicalPoint{pier: pier}
			if err := q.ParseDEC(s); err != nil {
				t.Fatalf("re-parsing %q (%g° pier %s): %v", s, dec, pier, err)
			}
			if q.decTicks != p.decTicks {
				t.Errorf("round trip of %g° pier %s via %q: got %d ticks, want %d", dec, pier, s, q.decTicks, p.decTicks)
			}
		}
	}
}

// TestDECTensDigitTable walks the full extended tens-digit range. Each of
// the 26 digit bytes must decode to its own ten-degree step, and the
// reachable encodes must emit the same byte the decoder accepts.
func TestDECTensDigitTable(t *testing.T) {
	reduce := func(t int64) int64 { return ((t % decModulus) + decModulus) % decModulus }

	for d := int64(0); d <= 25; d++ {
		digit := byte('0' + d)
		input := fmt.Sprintf("+%c5:59:59", digit)
		p := MechanicalPoint{pier: telescope.PierEast}
		if err := p.ParseDEC(input); err != nil {
			t.Fatalf("parsing %q: %v", input, err)
		}
		want := reduce(decPole - ((d*10+5)*3600 + 59*60 + 59))
		if p.decTicks != want {
			t.Errorf("digit %q: got %d ticks, want %d", digit, p.decTicks, want)
		}
	}

	// Reduced positions reach magnitudes up to 165°, covering tens digits
	// '0' through '@'.
	for d := int64(0); d <= 16; d++ {
		ticks := decPole + (d*10+5)*3600
		p := MechanicalPoint{decTicks: ticks, pier: telescope.PierEast}
		s, err := p.FormatDEC()
		if err != nil {
			t.Fatalf("formatting %d ticks: %v", ticks, err)
		}
		if want := byte('0' + d); s[1] != want {
			t.Errorf("formatting %d ticks: got digit %q, want %q", ticks, s[1], want)
		}
	}
}

func TestRADegreesTo(t *testing.T) {
	for _, test := range []struct {
		from, to float64
		want     float64
	}{
		{0, 1, 15},
		{1, 0, -15},
		{23, 1, 30},
		{1, 23, -30},
		{0, 12, 180},
		{6, 6, 0},
	} {
		p := NewMechanicalPoint(test.from, 0)
		o := NewMechanicalPoint(test.to, 0)
		if got := p.RADegreesTo(o); got != test.want {
			t.Errorf("RA separation %gh to %gh: got %g°, want %g°", test.from, test.to, got, test.want)
		}
	}
}

func TestDECDegreesTo(t *testing.T) {
	for _, test := range []struct {
		from, to float64
		want     float64
	}{
		{90, 100, 10},
		{100, 90, -10},
		// The DEC axis does not wrap.
		{10, 250, 240},
	} {
		p := NewMechanicalPoint(0, test.from)
		o := NewMechanicalPoint(0, test.to)
		if got := p.DECDegreesTo(o); got != test.want {
			t.Errorf("DEC separation %g° to %g°: got %g°, want %g°", test.from, test.to, got, test.want)
		}
	}
}

func TestEqual(t *testing.T) {
	base := NewMechanicalPoint(12, 45)
	same := NewMechanicalPoint(12, 45)
	if !base.Equal(same) {
		t.Error("identical positions compare unequal")
	}

	offRA := same
	offRA.raTicks++
	if base.Equal(offRA) {
		t.Error("positions one RA tick apart compare equal")
	}

	offDEC := same
	offDEC.decTicks++
	if base.Equal(offDEC) {
		t.Error("positions one DEC tick apart compare equal")
	}

	offPier := same
	offPier.SetPierSide(telescope.PierWest)
	if base.Equal(offPier) {
		t.Error("positions on opposite pier sides compare equal")
	}
}

func TestAtParkingPosition(t *testing.T) {
	if p := NewMechanicalPoint(0, 90); !p.AtParkingPosition() {
		t.Error("power-on attitude not recognized as parked")
	}
	if p := NewMechanicalPoint(0, 89); p.AtParkingPosition() {
		t.Error("position 1° off the pole treated as parked")
	}
	if p := NewMechanicalPoint(1, 90); p.AtParkingPosition() {
		t.Error("position 1h off treated as parked")
	}
}

func TestSetNormalization(t *testing.T) {
	var p MechanicalPoint
	if got := p.SetRA(-1); got != 23 {
		t.Errorf("SetRA(-1): got %g, want 23", got)
	}
	if got := p.SetRA(25.5); got != 1.5 {
		t.Errorf("SetRA(25.5): got %g, want 1.5", got)
	}
	if got := p.SetDEC(-10); got != 246 {
		t.Errorf("SetDEC(-10): got %g, want 246", got)
	}
	if got := p.SetDEC(270); got != 14 {
		t.Errorf("SetDEC(270): got %g, want 14", got)
	}
	if got := p.SetDEC(256); got != 0 {
		t.Errorf("SetDEC(256): got %g, want 0", got)
	}

	want := NewMechanicalPoint(1.5, 0)
	p.SetDEC(0)
	if diff := cmp.Diff(p, want, cmp.AllowUnexported(MechanicalPoint{})); diff != "" {
		t.Errorf("unexpected point state: got(-)/want(+):\n%s", diff)
	}
}
