package pricing

import (
	"errors"
	"fmt"
	"time"

	"zholkomekBack/internal/estimate/route"
)

// ErrInvalidConfig is returned when a tariff violates its invariants.
var ErrInvalidConfig = errors.New("pricing: invalid config")

// ErrInvalidInput is returned for malformed calculation input.
var ErrInvalidInput = errors.New("pricing: invalid input")

// VehicleType selects which vehicle multiplier applies.
type VehicleType string

const (
	VehicleSedan   VehicleType = "sedan"
	VehicleSUV     VehicleType = "suv"
	VehicleMinibus VehicleType = "minibus"
)

// VehicleCondition describes the state of the vehicle needing assistance.
type VehicleCondition string

const (
	ConditionWorking  VehicleCondition = "working"
	ConditionBroken   VehicleCondition = "broken"
	ConditionAccident VehicleCondition = "accident"
	ConditionDitch    VehicleCondition = "ditch"
)

// Timing states how soon the customer needs the tow.
type Timing string

const (
	TimingNow   Timing = "now"
	TimingWeek  Timing = "week"
	TimingLater Timing = "later"
)

// Config is the admin-controlled tariff: base fee, per-km tiers, multipliers
// and the flexibility margin. One record per tenant, mutated only through
// the admin update path.
type Config struct {
	ID                      int64     `json:"id"`
	BaseFee                 float64   `json:"base_fee"`
	ShortDistanceLimitKm    float64   `json:"short_distance_limit_km"`
	MediumDistanceLimitKm   float64   `json:"medium_distance_limit_km"`
	ShortDistanceRate       float64   `json:"short_distance_rate"`
	MediumDistanceRate      float64   `json:"medium_distance_rate"`
	LongDistanceRate        float64   `json:"long_distance_rate"`
	NightMultiplier         float64   `json:"night_multiplier"`
	WeekendMultiplier       float64   `json:"weekend_multiplier"`
	SedanMultiplier         float64   `json:"sedan_multiplier"`
	SUVMultiplier           float64   `json:"suv_multiplier"`
	MinibusMultiplier       float64   `json:"minibus_multiplier"`
	LuxuryMultiplier        float64   `json:"luxury_multiplier"`
	BrokenVehicleMultiplier float64   `json:"broken_vehicle_multiplier"`
	AccidentMultiplier      float64   `json:"accident_multiplier"`
	DitchMultiplier         float64   `json:"ditch_multiplier"`
	HasLoadMultiplier       float64   `json:"has_load_multiplier"`
	UrgentMultiplier        float64   `json:"urgent_multiplier"`
	PriceFlexibilityPercent float64   `json:"price_flexibility_percent"`
	UpdatedAt               time.Time `json:"updated_at"`
	UpdatedBy               string    `json:"updated_by"`
}

// Validate checks the tariff invariants.
func (c Config) Validate() error {
	if c.BaseFee < 0 {
		return fmt.Errorf("%w: base_fee must be non-negative", ErrInvalidConfig)
	}
	if c.ShortDistanceLimitKm <= 0 {
		return fmt.Errorf("%w: short_distance_limit_km must be positive", ErrInvalidConfig)
	}
	if c.ShortDistanceLimitKm >= c.MediumDistanceLimitKm {
		return fmt.Errorf("%w: short_distance_limit_km must be below medium_distance_limit_km", ErrInvalidConfig)
	}
	if c.ShortDistanceRate < 0 || c.MediumDistanceRate < 0 || c.LongDistanceRate < 0 {
		return fmt.Errorf("%w: distance rates must be non-negative", ErrInvalidConfig)
	}
	multipliers := []struct {
		name  string
		value float64
	}{
		{"night_multiplier", c.NightMultiplier},
		{"weekend_multiplier", c.WeekendMultiplier},
		{"sedan_multiplier", c.SedanMultiplier},
		{"suv_multiplier", c.SUVMultiplier},
		{"minibus_multiplier", c.MinibusMultiplier},
		{"luxury_multiplier", c.LuxuryMultiplier},
		{"broken_vehicle_multiplier", c.BrokenVehicleMultiplier},
		{"accident_multiplier", c.AccidentMultiplier},
		{"ditch_multiplier", c.DitchMultiplier},
		{"has_load_multiplier", c.HasLoadMultiplier},
		{"urgent_multiplier", c.UrgentMultiplier},
	}
	for _, m := range multipliers {
		if m.value < 0 {
			return fmt.Errorf("%w: %s must be non-negative", ErrInvalidConfig, m.name)
		}
	}
	if c.PriceFlexibilityPercent < 0 || c.PriceFlexibilityPercent > 100 {
		return fmt.Errorf("%w: price_flexibility_percent must be within [0,100]", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig is the tariff seeded when no record exists yet. Amounts in
// tenge.
func DefaultConfig() Config {
	return Config{
		ID:                      1,
		BaseFee:                 5000,
		ShortDistanceLimitKm:    10,
		MediumDistanceLimitKm:   40,
		ShortDistanceRate:       300,
		MediumDistanceRate:      250,
		LongDistanceRate:        200,
		NightMultiplier:         1.25,
		WeekendMultiplier:       1.10,
		SedanMultiplier:         1.0,
		SUVMultiplier:           1.15,
		MinibusMultiplier:       1.30,
		LuxuryMultiplier:        1.50,
		BrokenVehicleMultiplier: 1.20,
		AccidentMultiplier:      1.40,
		DitchMultiplier:         1.60,
		HasLoadMultiplier:       1.15,
		UrgentMultiplier:        1.20,
		PriceFlexibilityPercent: 10,
	}
}

// Input holds per-quote trip parameters. Distance comes from the resolved
// route, not from here.
type Input struct {
	VehicleType      VehicleType      `json:"vehicle_type"`
	VehicleCondition VehicleCondition `json:"vehicle_condition"`
	IsLuxury         bool             `json:"is_luxury"`
	Timing           Timing           `json:"timing"`
	HasLoad          bool             `json:"has_load"`
	RequestTime      time.Time        `json:"request_time"`
	IsWeekend        bool             `json:"is_weekend"`
}

// AppliedMultiplier is one multiplicative adjustment that actually applied.
type AppliedMultiplier struct {
	Name   string  `json:"name"`
	Reason string  `json:"reason"`
	Value  float64 `json:"value"`
}

// DistanceBreakdown itemizes the tiered distance charge.
type DistanceBreakdown struct {
	ShortKm      float64 `json:"short_km"`
	ShortCharge  float64 `json:"short_charge"`
	MediumKm     float64 `json:"medium_km"`
	MediumCharge float64 `json:"medium_charge"`
	LongKm       float64 `json:"long_km"`
	LongCharge   float64 `json:"long_charge"`
}

// Breakdown explains how the estimate was built.
type Breakdown struct {
	BaseFee     float64             `json:"base_fee"`
	Distance    DistanceBreakdown   `json:"distance"`
	Multipliers []AppliedMultiplier `json:"applied_multipliers"`
}

// Estimate is the itemized price estimate. An immutable result value; the
// engine does not persist it.
type Estimate struct {
	ID              string          `json:"estimate_id,omitempty"`
	Subtotal        float64         `json:"subtotal"`
	TotalMultiplier float64         `json:"total_multiplier"`
	FinalPrice      int             `json:"final_price"`
	MinPrice        int             `json:"min_price"`
	MaxPrice        int             `json:"max_price"`
	Breakdown       Breakdown       `json:"breakdown"`
	Route           route.RouteData `json:"route"`
}
