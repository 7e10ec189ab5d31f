// Package indicator holds the static catalog of measurable signals used to
// adjudicate decisions, the ordering of measurement horizons, and the
// derivation of pool calibration from indicator baseline dispersion.
package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/seedlabs/decision-engine/internal/model"
)

// Measurement horizons: how far after the decision's announcement a
// measurement was taken.
const (
	MeasureBaseline = "baseline"
	Measure30d      = "30d"
	Measure90d      = "90d"
	Measure180d     = "180d"
	Measure365d     = "365d"
)

// Indicator directionality: whether a rising value counts in favor of the
// decision or against it.
const (
	DirectionUpGood   = "up_good"
	DirectionDownGood = "down_good"
)

var horizonRank = map[string]int{
	MeasureBaseline: 0,
	Measure30d:      1,
	Measure90d:      2,
	Measure180d:     3,
	Measure365d:     4,
}

var (
	ErrUnknownIndicator = errors.New("indicator: not in catalog")
	ErrEmptyCatalog     = errors.New("indicator: catalog has no entries")
)

// HorizonRank orders measure types from baseline (0) to 365d (4).
// Unknown types rank below baseline so they are never picked as "freshest".
func HorizonRank(measureType string) int {
	rank, ok := horizonRank[measureType]
	if !ok {
		return -1
	}
	return rank
}

// ValidMeasureType reports whether s names a known measurement horizon.
func ValidMeasureType(s string) bool {
	_, ok := horizonRank[s]
	return ok
}

// Catalog is the static set of indicators the platform tracks. Loaded once
// at startup; the resolution engine only reads from it.
type Catalog struct {
	indicators map[string]model.Indicator
}

// catalogFile mirrors the TOML layout:
//
//	[[indicator]]
//	id = "unemployment_rate"
//	direction = "down_good"
//	weight = "1.5"
type catalogFile struct {
	Indicator []catalogEntry `toml:"indicator"`
}

type catalogEntry struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	Unit      string `toml:"unit"`
	Source    string `toml:"source"`
	Direction string `toml:"direction"`
	Weight    string `toml:"weight"`
	Cadence   string `toml:"cadence"`
}

// LoadCatalog reads and validates an indicator catalog from a TOML file.
func LoadCatalog(path string) (*Catalog, error) {
	var file catalogFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("indicator: load catalog: %w", err)
	}
	return buildCatalog(file.Indicator)
}

// NewCatalog builds a catalog directly from indicators, for tests and
// embedded defaults.
func NewCatalog(indicators []model.Indicator) (*Catalog, error) {
	if len(indicators) == 0 {
		return nil, ErrEmptyCatalog
	}
	byID := make(map[string]model.Indicator, len(indicators))
	for _, ind := range indicators {
		if err := validate(ind); err != nil {
			return nil, err
		}
		if _, dup := byID[ind.ID]; dup {
			return nil, fmt.Errorf("indicator: duplicate id %q", ind.ID)
		}
		byID[ind.ID] = ind
	}
	return &Catalog{indicators: byID}, nil
}

func buildCatalog(entries []catalogEntry) (*Catalog, error) {
	indicators := make([]model.Indicator, 0, len(entries))
	for _, e := range entries {
		weight := decimal.NewFromInt(1)
		if e.Weight != "" {
			w, err := decimal.NewFromString(e.Weight)
			if err != nil {
				return nil, fmt.Errorf("indicator %q: invalid weight %q", e.ID, e.Weight)
			}
			weight = w
		}
		indicators = append(indicators, model.Indicator{
			ID:        e.ID,
			Name:      e.Name,
			Unit:      e.Unit,
			Source:    e.Source,
			Direction: e.Direction,
			Weight:    weight,
			Cadence:   e.Cadence,
		})
	}
	return NewCatalog(indicators)
}

func validate(ind model.Indicator) error {
	if ind.ID == "" {
		return errors.New("indicator: id is required")
	}
	if ind.Direction != DirectionUpGood && ind.Direction != DirectionDownGood {
		return fmt.Errorf("indicator %q: direction must be %s or %s",
			ind.ID, DirectionUpGood, DirectionDownGood)
	}
	if ind.Weight.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("indicator %q: weight must be positive", ind.ID)
	}
	return nil
}

// Get returns the indicator with the given id.
func (c *Catalog) Get(id string) (model.Indicator, error) {
	ind, ok := c.indicators[id]
	if !ok {
		return model.Indicator{}, fmt.Errorf("%w: %s", ErrUnknownIndicator, id)
	}
	return ind, nil
}

// Has reports whether the catalog knows the indicator id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.indicators[id]
	return ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.indicators)
}

// Calibration is a derived (ghostSupply, slope) pair for bootstrapping a
// pool. slope × ghostSupply = 50 always holds, anchoring the bootstrap base
// price at a 50% probability.
type Calibration struct {
	GhostSupply decimal.Decimal
	Slope       decimal.Decimal
}

// bootstrapBasePrice anchors slope × ghostSupply for new pools.
var bootstrapBasePrice = decimal.NewFromInt(50)

// Calibrate derives pool calibration from the dispersion of an indicator's
// baseline samples. Noisier indicators get a steeper slope (and a smaller
// ghost supply), so markets on volatile signals move faster; stable signals
// get deeper bootstrap liquidity.
//
// Dispersion is the coefficient of variation (stddev / mean) of the
// samples. The slope scales as baseSlope × (1 + cv), capped at 4× base.
func Calibrate(samples []decimal.Decimal, baseSlope decimal.Decimal) (Calibration, error) {
	if baseSlope.LessThanOrEqual(decimal.Zero) {
		return Calibration{}, errors.New("indicator: base slope must be positive")
	}
	if len(samples) == 0 {
		return Calibration{
			GhostSupply: bootstrapBasePrice.Div(baseSlope),
			Slope:       baseSlope,
		}, nil
	}

	var sum float64
	for _, s := range samples {
		sum += s.InexactFloat64()
	}
	mean := sum / float64(len(samples))
	if mean <= 0 {
		// Degenerate baselines carry no dispersion information.
		return Calibration{
			GhostSupply: bootstrapBasePrice.Div(baseSlope),
			Slope:       baseSlope,
		}, nil
	}

	var variance float64
	for _, s := range samples {
		diff := s.InexactFloat64() - mean
		variance += diff * diff
	}
	variance /= float64(len(samples))

	cv := math.Sqrt(variance) / mean
	scale := 1 + cv
	if scale > 4 {
		scale = 4
	}

	slope := baseSlope.Mul(decimal.NewFromFloat(scale)).Round(8)
	return Calibration{
		GhostSupply: bootstrapBasePrice.Div(slope).Round(4),
		Slope:       slope,
	}, nil
}
