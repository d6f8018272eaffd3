package eq500x

import (
	"fmt"
	"time"
)

// maxConvergenceLoops bounds how many poll iterations a slew may spend in
// one cascade bucket before the centering procedure gives up. Stepping down
// to a finer bucket restarts the budget.
const maxConvergenceLoops = 144

// slewRate is one bucket of the centering cascade. While an axis delta is
// at most Distance away, the bucket's rate may drive that axis; motion on
// the bucket stops once the delta falls under Epsilon. Coarser buckets poll
// less often, and SimRate is the speed a simulated mount moves at while the
// bucket governs.
type slewRate struct {
	Command  string        // rate-select command
	Epsilon  float64       // stop threshold, degrees
	Distance float64       // selection ceiling, degrees
	Interval time.Duration // poll interval while governing
	SimRate  float64       // simulated speed, degrees per second
}

// slewRates orders the buckets finest to coarsest: guide, center, find and
// two slew stages. Each Epsilon stays within the previous bucket's
// Distance so stepping down a bucket always leaves the delta inside the
// finer bucket's reach, and the last Distance covers a full turn so
// selection cannot fall off the table.
var slewRates = []slewRate{
	{":RG#", 1 * ArcSecond, 0.7 * ArcMinute, 100 * time.Millisecond, 5 * ArcSecond},
	{":RC#", 0.7 * ArcMinute, 10 * ArcMinute, 200 * time.Millisecond, 5 * ArcMinute},
	{":RM#", 10 * ArcMinute, 5 * OneDegree, 500 * time.Millisecond, 20 * ArcMinute},
	{":RS#", 5 * OneDegree, 10 * OneDegree, 500 * time.Millisecond, 5 * OneDegree},
	{":RS#", 10 * OneDegree, 360 * OneDegree, 1000 * time.Millisecond, 5 * OneDegree},
}

func init() {
	for i := range slewRates[:len(slewRates)-1] {
		if slewRates[i+1].Epsilon > slewRates[i].Distance {
			panic(fmt.Sprintf("slew rate table gap between %s and %s",
				slewRates[i].Command, slewRates[i+1].Command))
		}
	}
}

// rateFor selects the finest bucket whose ceiling covers an absolute axis
// delta in degrees.
func rateFor(delta float64) int {
	for i := range slewRates {
		if delta <= slewRates[i].Distance {
			return i
		}
	}
	return len(slewRates) - 1
}
