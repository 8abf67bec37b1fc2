package simulate

import (
	"math"
	"testing"

	"github.com/meenmo/autocallpricer/errs"
)

func TestBridgeHitProbability_CertainWhenEndpointAtOrBelowBarrier(t *testing.T) {
	certain, prob, err := bridgeHitProbability(math.Log(100), math.Log(90), math.Log(95), 0.04, 1e-14)
	if err != nil {
		t.Fatalf("bridgeHitProbability returned error: %v", err)
	}
	if !certain || prob != 1 {
		t.Fatalf("expected a certain hit when x1 <= barrier, got certain=%v prob=%v", certain, prob)
	}
}

func TestBridgeHitProbability_ZeroAtInfiniteDistance(t *testing.T) {
	// A barrier far below both endpoints should have vanishing hit probability.
	_, prob, err := bridgeHitProbability(math.Log(100), math.Log(100), math.Log(1), 0.01, 1e-14)
	if err != nil {
		t.Fatalf("bridgeHitProbability returned error: %v", err)
	}
	if prob > 1e-6 {
		t.Fatalf("expected ~0 hit probability for a barrier far below both endpoints, got %v", prob)
	}
}

func TestBridgeHitProbability_ErrorsOnZeroVarianceWithEndpointsAboveBarrier(t *testing.T) {
	_, _, err := bridgeHitProbability(math.Log(100), math.Log(100), math.Log(50), 0, 1e-14)
	if err == nil {
		t.Fatalf("expected a NumericFailure when sigma^2*dt is at the floor")
	}
	if !errs.Is(err, errs.NumericFailure) {
		t.Fatalf("expected errs.NumericFailure, got %v", err)
	}
}

func TestBridgeHitProbability_MonotoneInBarrierDistance(t *testing.T) {
	_, farProb, err := bridgeHitProbability(math.Log(100), math.Log(110), math.Log(50), 0.04, 1e-14)
	if err != nil {
		t.Fatalf("bridgeHitProbability returned error: %v", err)
	}
	_, nearProb, err := bridgeHitProbability(math.Log(100), math.Log(110), math.Log(90), 0.04, 1e-14)
	if err != nil {
		t.Fatalf("bridgeHitProbability returned error: %v", err)
	}
	if nearProb <= farProb {
		t.Fatalf("a nearer barrier should have a higher hit probability: near=%v far=%v", nearProb, farProb)
	}
}
