package cli_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/meenmo/autocallpricer/config"
	"github.com/meenmo/autocallpricer/errs"
	"github.com/meenmo/autocallpricer/internal/cli"
)

func TestExitCode_Success(t *testing.T) {
	if got := cli.ExitCode(nil); got != 0 {
		t.Fatalf("ExitCode(nil) = %d, want 0", got)
	}
}

func TestExitCode_ValidationErrorsReturnTwo(t *testing.T) {
	for _, kind := range []errs.Kind{errs.InvalidSchema, errs.InvalidDate} {
		err := errs.New(kind, "op", errors.New("bad input"))
		if got := cli.ExitCode(err); got != 2 {
			t.Fatalf("ExitCode(%v) = %d, want 2", kind, got)
		}
	}
}

func TestExitCode_RuntimeErrorsReturnOne(t *testing.T) {
	for _, kind := range []errs.Kind{errs.NumericFailure, errs.ResourceExceeded, errs.Cancelled} {
		err := errs.New(kind, "op", errors.New("failed"))
		if got := cli.ExitCode(err); got != 1 {
			t.Fatalf("ExitCode(%v) = %d, want 1", kind, got)
		}
	}
}

func TestExitCode_UnwrappedErrorReturnsOne(t *testing.T) {
	if got := cli.ExitCode(errors.New("plain error")); got != 1 {
		t.Fatalf("ExitCode(plain error) = %d, want 1", got)
	}
}

func TestLoadTermSheet_MissingFileErrors(t *testing.T) {
	if _, err := cli.LoadTermSheet(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestLoadTermSheet_ParsesAValidFile(t *testing.T) {
	doc := `{
      "meta": {"valuation_date": "2026-01-01", "maturity_date": "2027-01-01", "maturity_payment_date": "2027-01-05", "notional": 100},
      "underlyings": [{"id": "A", "spot": 100, "vol_model": {"type": "flat", "flat_vol": 0.2}}],
      "discount_curve": {"flat_rate": 0.02},
      "correlation": {},
      "schedules": {"observation_dates": ["2027-01-01"], "payment_dates": ["2027-01-05"], "autocall_levels": [1.0], "coupon_barriers": [0.7], "coupon_rates": [0.04]},
      "ki_barrier": {"level": 0.6},
      "payoff": {"redemption_if_no_ki": 1.0, "redemption_if_autocall": 1.0}
    }`
	path := filepath.Join(t.TempDir(), "term_sheet.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ts, err := cli.LoadTermSheet(path)
	if err != nil {
		t.Fatalf("LoadTermSheet returned error: %v", err)
	}
	if ts.Meta.Notional != 100 {
		t.Fatalf("Notional = %v, want 100", ts.Meta.Notional)
	}
}

func TestLoadRuntimeConfig_OverridesFromExplicitFile(t *testing.T) {
	defer config.Set(config.DefaultConfig)

	path := filepath.Join(t.TempDir(), "tuning.toml")
	doc := "grid_steps_per_year = 12\nmax_workers = 4\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cli.LoadRuntimeConfig(path)

	got := config.Get()
	if got.GridStepsPerYear != 12 {
		t.Fatalf("GridStepsPerYear = %d, want 12", got.GridStepsPerYear)
	}
	if got.MaxWorkers != 4 {
		t.Fatalf("MaxWorkers = %d, want 4", got.MaxWorkers)
	}
	// Untouched keys keep their default.
	if got.DividendCapFraction != config.DefaultConfig.DividendCapFraction {
		t.Fatalf("DividendCapFraction was perturbed by an unrelated override: %v", got.DividendCapFraction)
	}
}

func TestLoadRuntimeConfig_MissingFileKeepsDefaults(t *testing.T) {
	defer config.Set(config.DefaultConfig)
	cli.LoadRuntimeConfig(filepath.Join(t.TempDir(), "missing.toml"))
	got := config.Get()
	if got.GridStepsPerYear != config.DefaultConfig.GridStepsPerYear {
		t.Fatalf("GridStepsPerYear = %d, want the default %d", got.GridStepsPerYear, config.DefaultConfig.GridStepsPerYear)
	}
}
