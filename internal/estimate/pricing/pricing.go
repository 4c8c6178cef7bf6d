package pricing

import (
	"fmt"
	"math"

	"zholkomekBack/internal/estimate/route"
	"zholkomekBack/internal/estimate/timeutil"
)

// Night window in local (Asia/Almaty) hours: [22:00, 06:00).
const (
	nightStartHour = 22
	nightEndHour   = 6
)

// Calculate produces the itemized estimate for a trip. Pure: no I/O, fully
// deterministic for a given (input, route, config) triple.
//
// Rounding policy: final, min and max prices round half-up to the whole
// tenge (math.Round on non-negative values); min/max derive from the
// already-rounded final price so the flexibility band is reproducible.
func Calculate(input Input, rt route.RouteData, cfg Config) (Estimate, error) {
	if err := cfg.Validate(); err != nil {
		return Estimate{}, err
	}
	d := rt.DistanceKm
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return Estimate{}, fmt.Errorf("%w: distance_km must be finite and non-negative", ErrInvalidInput)
	}

	distance := distanceCharge(d, cfg)
	subtotal := cfg.BaseFee + distance.ShortCharge + distance.MediumCharge + distance.LongCharge

	multipliers, err := applicableMultipliers(input, cfg)
	if err != nil {
		return Estimate{}, err
	}
	total := 1.0
	for _, m := range multipliers {
		total *= m.Value
	}

	final := roundHalfUp(subtotal * total)
	flex := cfg.PriceFlexibilityPercent / 100.0

	return Estimate{
		Subtotal:        subtotal,
		TotalMultiplier: total,
		FinalPrice:      final,
		MinPrice:        roundHalfUp(float64(final) * (1 - flex)),
		MaxPrice:        roundHalfUp(float64(final) * (1 + flex)),
		Breakdown: Breakdown{
			BaseFee:     cfg.BaseFee,
			Distance:    distance,
			Multipliers: multipliers,
		},
		Route: rt,
	}, nil
}

// QuickEstimate is a cheap distance-only preview: base fee plus the tiered
// distance charge with the flexibility band, no multipliers.
func QuickEstimate(distanceKm float64, cfg Config) (minPrice, maxPrice int, err error) {
	if err := cfg.Validate(); err != nil {
		return 0, 0, err
	}
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return 0, 0, fmt.Errorf("%w: distance_km must be finite and non-negative", ErrInvalidInput)
	}
	distance := distanceCharge(distanceKm, cfg)
	subtotal := cfg.BaseFee + distance.ShortCharge + distance.MediumCharge + distance.LongCharge
	final := roundHalfUp(subtotal)
	flex := cfg.PriceFlexibilityPercent / 100.0
	return roundHalfUp(float64(final) * (1 - flex)), roundHalfUp(float64(final) * (1 + flex)), nil
}

func distanceCharge(d float64, cfg Config) DistanceBreakdown {
	shortKm := math.Min(d, cfg.ShortDistanceLimitKm)
	mediumKm := clamp(d-cfg.ShortDistanceLimitKm, 0, cfg.MediumDistanceLimitKm-cfg.ShortDistanceLimitKm)
	longKm := math.Max(0, d-cfg.MediumDistanceLimitKm)
	return DistanceBreakdown{
		ShortKm:      shortKm,
		ShortCharge:  shortKm * cfg.ShortDistanceRate,
		MediumKm:     mediumKm,
		MediumCharge: mediumKm * cfg.MediumDistanceRate,
		LongKm:       longKm,
		LongCharge:   longKm * cfg.LongDistanceRate,
	}
}

// applicableMultipliers returns the multipliers whose trigger holds, in a
// stable order: night, weekend, vehicle type, luxury, condition, load,
// urgency. Factors that do not apply are omitted from the list and
// contribute an implicit 1 to the product.
func applicableMultipliers(input Input, cfg Config) ([]AppliedMultiplier, error) {
	var applied []AppliedMultiplier

	hour := timeutil.LocalHour(input.RequestTime)
	if hour >= nightStartHour || hour < nightEndHour {
		applied = append(applied, AppliedMultiplier{
			Name:   "night",
			Reason: "request between 22:00 and 06:00",
			Value:  cfg.NightMultiplier,
		})
	}
	if input.IsWeekend {
		applied = append(applied, AppliedMultiplier{
			Name:   "weekend",
			Reason: "weekend request",
			Value:  cfg.WeekendMultiplier,
		})
	}

	switch input.VehicleType {
	case VehicleSedan:
		applied = append(applied, AppliedMultiplier{Name: "vehicle:sedan", Reason: "sedan baseline", Value: cfg.SedanMultiplier})
	case VehicleSUV:
		applied = append(applied, AppliedMultiplier{Name: "vehicle:suv", Reason: "SUV vehicle", Value: cfg.SUVMultiplier})
	case VehicleMinibus:
		applied = append(applied, AppliedMultiplier{Name: "vehicle:minibus", Reason: "minibus vehicle", Value: cfg.MinibusMultiplier})
	default:
		return nil, fmt.Errorf("%w: unknown vehicle type %q", ErrInvalidInput, input.VehicleType)
	}

	if input.IsLuxury {
		applied = append(applied, AppliedMultiplier{Name: "luxury", Reason: "luxury vehicle", Value: cfg.LuxuryMultiplier})
	}

	switch input.VehicleCondition {
	case ConditionWorking:
		// working vehicle contributes no condition multiplier
	case ConditionBroken:
		applied = append(applied, AppliedMultiplier{Name: "condition:broken", Reason: "vehicle broken down", Value: cfg.BrokenVehicleMultiplier})
	case ConditionAccident:
		applied = append(applied, AppliedMultiplier{Name: "condition:accident", Reason: "vehicle in accident", Value: cfg.AccidentMultiplier})
	case ConditionDitch:
		applied = append(applied, AppliedMultiplier{Name: "condition:ditch", Reason: "vehicle in ditch", Value: cfg.DitchMultiplier})
	default:
		return nil, fmt.Errorf("%w: unknown vehicle condition %q", ErrInvalidInput, input.VehicleCondition)
	}

	if input.HasLoad {
		applied = append(applied, AppliedMultiplier{Name: "load", Reason: "vehicle carries load", Value: cfg.HasLoadMultiplier})
	}

	switch input.Timing {
	case TimingNow:
		applied = append(applied, AppliedMultiplier{Name: "urgent", Reason: "immediate assistance requested", Value: cfg.UrgentMultiplier})
	case TimingWeek, TimingLater:
	default:
		return nil, fmt.Errorf("%w: unknown timing %q", ErrInvalidInput, input.Timing)
	}

	return applied, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// roundHalfUp rounds to the nearest whole tenge, halves away from zero.
// Prices are never negative here, so this is plain half-up.
func roundHalfUp(v float64) int {
	return int(math.Round(v))
}

// RoundDownToStep floors a price to the given step, e.g. to present a
// recommended price in 50 tenge increments.
func RoundDownToStep(n, step int) int {
	if step <= 0 {
		return n
	}
	if n < 0 {
		return -RoundDownToStep(-n, step)
	}
	return (n / step) * step
}
