package site

import "math"

// Horizontal converts an equatorial position to the horizontal frame.
// Inputs are the local sidereal time and RA in hours, the latitude and DEC
// in degrees; outputs are azimuth counted from north through east and
// altitude, both in degrees.
// Algorithm from https://metacpan.org/dist/Astro-Montenbruck/source/lib/Astro/Montenbruck/CoCo.pm
func Horizontal(lst, latitude, ra, dec float64) (az, alt float64) {
	ha := deg2rad((lst - ra) * 15.0)
	phi := deg2rad(latitude)
	delta := deg2rad(dec)

	sq := math.Sin(delta)*math.Sin(phi) + math.Cos(delta)*math.Cos(phi)*math.Cos(ha)
	q := math.Asin(sq)

	// Rounding can push the quotient just past ±1 at the zenith.
	cp := (math.Sin(delta) - math.Sin(phi)*sq) / (math.Cos(phi) * math.Cos(q))
	p := math.Acos(math.Max(-1, math.Min(1, cp)))
	if math.Sin(ha) > 0 {
		p = 2*math.Pi - p
	}
	p = math.Mod(p, 2*math.Pi)
	return rad2deg(p), rad2deg(q)
}

// HorizontalAt returns the current azimuth and altitude of an equatorial
// position as seen from the site.
func (s *Site) HorizontalAt(ra, dec float64) (az, alt float64) {
	return Horizontal(s.LocalSiderealTime(), s.Latitude(), ra, dec)
}

func deg2rad(x float64) float64 {
	return x * math.Pi / 180
}

func rad2deg(x float64) float64 {
	return x * 180 / math.Pi
}
