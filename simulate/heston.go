package simulate

import "math"

// qeVarianceStep advances the CIR-like variance process one step using
// Andersen's Quadratic-Exponential discretization (spec §4.4, §9(c)). zv is
// the step's dedicated variance-stream normal; psiC is the fixed
// moment-ratio threshold (1.5) selecting the high- or low-variance branch.
func qeVarianceStep(v0, kappa, theta, xi, dt, zv, psiC float64) float64 {
	ekt := math.Exp(-kappa * dt)
	m := theta + (v0-theta)*ekt
	s2 := v0*xi*xi*ekt/kappa*(1-ekt) + theta*xi*xi/(2*kappa)*(1-ekt)*(1-ekt)
	if m <= 0 {
		return 0
	}
	psi := s2 / (m * m)

	if psi <= psiC {
		twoOverPsi := 2 / psi
		b2 := twoOverPsi - 1 + math.Sqrt(twoOverPsi*(twoOverPsi-1))
		if b2 < 0 {
			b2 = 0
		}
		b := math.Sqrt(b2)
		a := m / (1 + b2)
		v1 := a * (b + zv) * (b + zv)
		if v1 < 0 {
			v1 = 0
		}
		return v1
	}

	p := (psi - 1) / (psi + 1)
	beta := (1 - p) / m
	u := normalCDF(zv)
	if u <= p {
		return 0
	}
	return math.Log((1-p)/(1-u)) / beta
}

func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// qeLogSpotIncrement returns the log-spot increment for one QE step given
// the variance at the start and end of the step, the risk-neutral drift
// rate components, and the spot-variance correlation rho. gamma1=gamma2=
// 0.5 is the standard central discretization.
func qeLogSpotIncrement(v0, v1, driftRate, kappa, theta, xi, rho, dt, zs float64) float64 {
	const gamma1, gamma2 = 0.5, 0.5

	k0 := -rho * kappa * theta * dt / xi
	k1 := gamma1*dt*(kappa*rho/xi-0.5) - rho/xi
	k2 := gamma2*dt*(kappa*rho/xi-0.5) + rho/xi
	k3 := gamma1 * dt * (1 - rho*rho)
	k4 := gamma2 * dt * (1 - rho*rho)

	variance := k3*v0 + k4*v1
	if variance < 0 {
		variance = 0
	}

	return driftRate*dt + k0 + k1*v0 + k2*v1 + math.Sqrt(variance)*zs
}
