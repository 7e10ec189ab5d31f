package indicator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func testIndicators() []model.Indicator {
	return []model.Indicator{
		{ID: "unemployment_rate", Direction: DirectionDownGood, Weight: d(1.5)},
		{ID: "median_income", Direction: DirectionUpGood, Weight: d(1)},
	}
}

func TestHorizonRank_Ordering(t *testing.T) {
	order := []string{MeasureBaseline, Measure30d, Measure90d, Measure180d, Measure365d}
	for i := 1; i < len(order); i++ {
		if HorizonRank(order[i]) <= HorizonRank(order[i-1]) {
			t.Errorf("horizon %s should rank above %s", order[i], order[i-1])
		}
	}
	if HorizonRank("7d") != -1 {
		t.Error("unknown horizon should rank -1")
	}
}

func TestNewCatalog_Valid(t *testing.T) {
	c, err := NewCatalog(testIndicators())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
	ind, err := c.Get("unemployment_rate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ind.Direction != DirectionDownGood {
		t.Errorf("expected down_good, got %s", ind.Direction)
	}
}

func TestNewCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		indicators []model.Indicator
	}{
		{"empty", nil},
		{"missing id", []model.Indicator{{Direction: DirectionUpGood, Weight: d(1)}}},
		{"bad direction", []model.Indicator{{ID: "x", Direction: "sideways", Weight: d(1)}}},
		{"zero weight", []model.Indicator{{ID: "x", Direction: DirectionUpGood}}},
		{"duplicate", []model.Indicator{
			{ID: "x", Direction: DirectionUpGood, Weight: d(1)},
			{ID: "x", Direction: DirectionUpGood, Weight: d(1)},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.indicators); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGet_Unknown(t *testing.T) {
	c, _ := NewCatalog(testIndicators())
	_, err := c.Get("gdp")
	if !errors.Is(err, ErrUnknownIndicator) {
		t.Errorf("expected ErrUnknownIndicator, got %v", err)
	}
}

// --- Calibration tests ---

func TestCalibrate_AnchorsBasePriceAtFifty(t *testing.T) {
	tolerance := d(0.1)
	samples := []decimal.Decimal{d(4.1), d(4.5), d(5.2), d(3.9)}

	cal, err := Calibrate(samples, d(0.01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := cal.Slope.Mul(cal.GhostSupply)
	if base.Sub(d(50)).Abs().GreaterThan(tolerance) {
		t.Errorf("slope×ghost should anchor at 50, got %s", base)
	}
}

func TestCalibrate_NoisierSteeperSlope(t *testing.T) {
	stable := []decimal.Decimal{d(10), d(10.1), d(9.9), d(10)}
	noisy := []decimal.Decimal{d(2), d(18), d(5), d(15)}

	calStable, err := Calibrate(stable, d(0.01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calNoisy, err := Calibrate(noisy, d(0.01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calNoisy.Slope.LessThanOrEqual(calStable.Slope) {
		t.Errorf("noisy baselines should produce steeper slope: noisy=%s stable=%s",
			calNoisy.Slope, calStable.Slope)
	}
	if calNoisy.GhostSupply.GreaterThanOrEqual(calStable.GhostSupply) {
		t.Errorf("noisy baselines should produce smaller ghost supply: noisy=%s stable=%s",
			calNoisy.GhostSupply, calStable.GhostSupply)
	}
}

func TestCalibrate_NoSamplesUsesBase(t *testing.T) {
	cal, err := Calibrate(nil, d(0.01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cal.Slope.Equal(d(0.01)) {
		t.Errorf("expected base slope, got %s", cal.Slope)
	}
	if !cal.GhostSupply.Equal(d(5000)) {
		t.Errorf("expected ghost supply 5000, got %s", cal.GhostSupply)
	}
}

func TestCalibrate_InvalidBaseSlope(t *testing.T) {
	if _, err := Calibrate(nil, decimal.Zero); err == nil {
		t.Error("expected error for zero base slope")
	}
}

func TestCalibrate_SlopeCapped(t *testing.T) {
	// Extreme dispersion must not blow the slope past 4× base.
	wild := []decimal.Decimal{d(0.001), d(1000), d(0.002), d(900)}
	cal, err := Calibrate(wild, d(0.01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cal.Slope.GreaterThan(d(0.04)) {
		t.Errorf("slope should cap at 0.04, got %s", cal.Slope)
	}
}
