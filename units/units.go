package units

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Type identifies the kind of reading a measurement represents.
type Type string

const (
	TypeWeight           Type = "WEIGHT"
	TypeBPSystolic       Type = "BP_SYSTOLIC"
	TypeBPDiastolic      Type = "BP_DIASTOLIC"
	TypeSpO2             Type = "SPO2"
	TypeHeartRate        Type = "HEART_RATE"
	TypeBodyFatPercent   Type = "BODY_FAT_PERCENT"
	TypeMuscleMass       Type = "MUSCLE_MASS"
	TypeBodyWaterPercent Type = "BODY_WATER_PERCENT"
)

var (
	ErrUnsupportedType  = errors.New("unsupported measurement type")
	ErrUnsupportedUnit  = errors.New("unsupported unit")
	ErrImplausibleValue = errors.New("value outside clinically plausible range")
)

// IsRejection reports whether err is a permanent input rejection, as opposed
// to a transient failure worth retrying.
func IsRejection(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrUnsupportedUnit) ||
		errors.Is(err, ErrImplausibleValue)
}

const (
	// canonicalPrecision keeps stored values stable across repeated conversions.
	canonicalPrecision = 4
	displayPrecision   = 2
)

// toCanonicalFactor maps each supported input unit to the multiplier that
// produces the canonical unit for the type. Keys are lower-cased.
type conversion struct {
	canonicalUnit string
	factors       map[string]float64
}

var conversions = map[Type]conversion{
	TypeWeight: {
		canonicalUnit: "kg",
		factors: map[string]float64{
			"kg":  1,
			"lb":  0.453592,
			"lbs": 0.453592,
			"g":   0.001,
		},
	},
	TypeBPSystolic: {
		canonicalUnit: "mmHg",
		factors: map[string]float64{
			"mmhg": 1,
			"kpa":  7.50062,
		},
	},
	TypeBPDiastolic: {
		canonicalUnit: "mmHg",
		factors: map[string]float64{
			"mmhg": 1,
			"kpa":  7.50062,
		},
	},
	TypeSpO2: {
		canonicalUnit: "%",
		factors: map[string]float64{
			"%":       1,
			"percent": 1,
		},
	},
	TypeHeartRate: {
		canonicalUnit: "bpm",
		factors: map[string]float64{
			"bpm": 1,
		},
	},
	TypeBodyFatPercent: {
		canonicalUnit: "%",
		factors: map[string]float64{
			"%":       1,
			"percent": 1,
		},
	},
	TypeMuscleMass: {
		canonicalUnit: "kg",
		factors: map[string]float64{
			"kg":  1,
			"lb":  0.453592,
			"lbs": 0.453592,
		},
	},
	TypeBodyWaterPercent: {
		canonicalUnit: "%",
		factors: map[string]float64{
			"%":       1,
			"percent": 1,
		},
	},
}

// plausibleRange bounds are applied to canonical values before anything is stored.
type plausibleRange struct {
	min float64
	max float64
}

var plausibleRanges = map[Type]plausibleRange{
	TypeWeight:           {1, 500},
	TypeBPSystolic:       {30, 300},
	TypeBPDiastolic:      {20, 200},
	TypeSpO2:             {10, 100},
	TypeHeartRate:        {20, 300},
	TypeBodyFatPercent:   {1, 75},
	TypeMuscleMass:       {1, 200},
	TypeBodyWaterPercent: {10, 90},
}

// IsSupported reports whether t is a known measurement type.
func IsSupported(t Type) bool {
	_, ok := conversions[t]
	return ok
}

// CanonicalUnit returns the unit every measurement of the given type is stored in.
func CanonicalUnit(t Type) (string, error) {
	c, ok := conversions[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return c.canonicalUnit, nil
}

// ToCanonical converts value expressed in unit to the canonical unit of the type.
// Unit matching is case-insensitive and ignores surrounding whitespace.
func ToCanonical(t Type, value float64, unit string) (float64, string, error) {
	c, ok := conversions[t]
	if !ok {
		return 0, "", fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	factor, ok := c.factors[normalizeUnit(unit)]
	if !ok {
		return 0, "", fmt.Errorf("%w: %q for type %s", ErrUnsupportedUnit, unit, t)
	}
	return round(value*factor, canonicalPrecision), c.canonicalUnit, nil
}

// FromCanonical converts a canonical value back to displayUnit for presentation.
// It never fails: an unrecognized display unit yields the canonical value unchanged.
func FromCanonical(t Type, value float64, displayUnit string) float64 {
	c, ok := conversions[t]
	if !ok {
		return value
	}
	factor, ok := c.factors[normalizeUnit(displayUnit)]
	if !ok {
		return value
	}
	return round(value/factor, displayPrecision)
}

// CheckPlausible rejects canonical values outside the clinically plausible
// range for the type. The bounds are deliberately generous; they exist to
// catch unit mix-ups and fat-fingered entries, not to make clinical calls.
func CheckPlausible(t Type, canonicalValue float64) error {
	r, ok := plausibleRanges[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	if canonicalValue < r.min || canonicalValue > r.max {
		return fmt.Errorf("%w: %v %s for type %s", ErrImplausibleValue, canonicalValue, conversions[t].canonicalUnit, t)
	}
	return nil
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

func round(value float64, places int) float64 {
	pow := math.Pow10(places)
	return math.Round(value*pow) / pow
}
