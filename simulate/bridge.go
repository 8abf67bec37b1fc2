package simulate

import (
	"fmt"
	"math"

	"github.com/meenmo/autocallpricer/errs"
)

// bridgeHitProbability returns the probability that a Brownian bridge
// between log-spot endpoints x0, x1 over a step of variance sigmaSqDt
// touches the log-barrier b (spec §4.4). If either endpoint is already at
// or below the barrier, the bridge is certainly hit and no probability
// need be computed.
func bridgeHitProbability(x0, x1, b, sigmaSqDt, floor float64) (certain bool, prob float64, err error) {
	if x0 <= b || x1 <= b {
		return true, 1, nil
	}
	if sigmaSqDt <= floor {
		return false, 0, errs.New(errs.NumericFailure, "simulate.bridgeHitProbability",
			fmt.Errorf("sigma^2*dt is at or below the numerical floor %.3e with both endpoints above the barrier", floor))
	}
	p := math.Exp(-2 * (x0 - b) * (x1 - b) / sigmaSqDt)
	return false, p, nil
}
