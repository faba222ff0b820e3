package notifications

import (
	"time"

	"github.com/deepmap/oapi-codegen/pkg/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const ChannelEmail = "email"

type Status string

const (
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Skip reasons recorded on SKIPPED log rows so "why didn't the clinician get
// notified" can be answered from the audit trail alone.
const (
	ReasonAlertCooldown      = "alert-cooldown"
	ReasonNoPrimaryClinician = "no-primary-clinician"
	ReasonPreferenceDisabled = "preference-disabled"
	ReasonRecipientCooldown  = "recipient-cooldown"
)

// NotificationLog is the append-only audit trail of dispatch attempts. Every
// attempt writes exactly one row, including skips.
type NotificationLog struct {
	Id          primitive.ObjectID `bson:"_id,omitempty"`
	ClinicianId string             `bson:"clinicianId"`
	PatientId   string             `bson:"patientId"`
	AlertId     primitive.ObjectID `bson:"alertId"`
	Channel     string             `bson:"channel"`
	Status      Status             `bson:"status"`
	Reason      string             `bson:"reason,omitempty"`
	Recipient   types.Email        `bson:"recipient,omitempty"`
	Subject     string             `bson:"subject,omitempty"`
	Error       *string            `bson:"error,omitempty"`
	SentAt      time.Time          `bson:"sentAt"`
}

// Preferences are the clinician's notification toggles. A clinician without
// a stored document gets the defaults.
type Preferences struct {
	ClinicianId      string `bson:"clinicianId"`
	EmailEnabled     bool   `bson:"emailEnabled"`
	NotifyOnInfo     bool   `bson:"notifyOnInfo"`
	NotifyOnWarning  bool   `bson:"notifyOnWarning"`
	NotifyOnCritical bool   `bson:"notifyOnCritical"`
}

func DefaultPreferences(clinicianId string) *Preferences {
	return &Preferences{
		ClinicianId:      clinicianId,
		EmailEnabled:     true,
		NotifyOnInfo:     false,
		NotifyOnWarning:  true,
		NotifyOnCritical: true,
	}
}
