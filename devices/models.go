package devices

import (
	"strings"

	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/stream"
	"github.com/nephrawn/monitor-worker/units"
)

// ReadingsEvent is one vendor sync payload: a batch of readings a device
// uploaded for a single patient. Vendors may re-deliver whole batches; the
// per-reading vendor id keeps redelivery idempotent downstream.
type ReadingsEvent struct {
	Offset    int64           `json:"-"`
	Vendor    string          `json:"vendor"`
	PatientId string          `json:"patientId"`
	Readings  []VendorReading `json:"readings"`
}

func (e ReadingsEvent) HasReadings() bool {
	return e.Vendor != "" && e.PatientId != "" && len(e.Readings) > 0
}

type VendorReading struct {
	Id    string        `json:"id"`
	Type  string        `json:"type"`
	Value float64       `json:"value"`
	Unit  string        `json:"unit"`
	Time  stream.Millis `json:"time"`
}

// vendorTypes maps the type tags vendors use to the internal measurement
// types. Keys are lower-cased.
var vendorTypes = map[string]units.Type{
	"weight":            units.TypeWeight,
	"bp_systolic":       units.TypeBPSystolic,
	"systolic":          units.TypeBPSystolic,
	"bp_diastolic":      units.TypeBPDiastolic,
	"diastolic":         units.TypeBPDiastolic,
	"spo2":              units.TypeSpO2,
	"oxygen_saturation": units.TypeSpO2,
	"heart_rate":        units.TypeHeartRate,
	"pulse":             units.TypeHeartRate,
	"body_fat":          units.TypeBodyFatPercent,
	"muscle_mass":       units.TypeMuscleMass,
	"body_water":        units.TypeBodyWaterPercent,
}

// ToSubmission maps the vendor reading onto a measurement submission. The
// second return value is false when the vendor type tag is not recognized.
func (r VendorReading) ToSubmission(vendor, patientId string) (measurements.Submission, bool) {
	t, ok := vendorTypes[strings.ToLower(strings.TrimSpace(r.Type))]
	if !ok {
		return measurements.Submission{}, false
	}

	externalId := r.Id
	effective := r.Time.Time()
	return measurements.Submission{
		PatientId:  patientId,
		Type:       t,
		Value:      r.Value,
		Unit:       r.Unit,
		Source:     vendor,
		ExternalId: &externalId,
		Time:       &effective,
	}, true
}
