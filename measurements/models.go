package measurements

import (
	"time"

	"github.com/nephrawn/monitor-worker/units"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// SourceManual marks readings typed in by the patient. Anything else is a
	// device vendor tag (e.g. "withings", "tenovi").
	SourceManual = "manual"

	InteractionKindMeasurement = "measurement"
)

// Measurement is a single accepted reading. Rows are immutable once written
// and the value is always expressed in the canonical unit of the type.
type Measurement struct {
	Id         primitive.ObjectID `bson:"_id,omitempty"`
	PatientId  string             `bson:"patientId"`
	Type       units.Type         `bson:"type"`
	Value      float64            `bson:"value"`
	Unit       string             `bson:"unit"`
	InputUnit  *string            `bson:"inputUnit,omitempty"`
	Source     string             `bson:"source"`
	ExternalId *string            `bson:"externalId,omitempty"`
	Time       time.Time          `bson:"time"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

// IsDeviceSourced reports whether the reading carries a vendor identity
// usable for exact-match deduplication.
func (m Measurement) IsDeviceSourced() bool {
	return m.Source != SourceManual && m.ExternalId != nil && *m.ExternalId != ""
}

// Interaction is the append-only audit record written in the same
// transaction as the measurement it describes.
type Interaction struct {
	Id            primitive.ObjectID `bson:"_id,omitempty"`
	PatientId     string             `bson:"patientId"`
	MeasurementId primitive.ObjectID `bson:"measurementId"`
	Kind          string             `bson:"kind"`
	Source        string             `bson:"source"`
	Time          time.Time          `bson:"time"`
}

// Submission is a raw inbound reading before normalization.
type Submission struct {
	PatientId  string
	Type       units.Type
	Value      float64
	Unit       string
	Source     string
	ExternalId *string
	Time       *time.Time
}

// Result is the outcome of an accepted or deduplicated submission.
type Result struct {
	Measurement   *Measurement
	IsDuplicate   bool
	ConvertedFrom *string
}
