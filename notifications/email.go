package notifications

import (
	"fmt"
	"strings"

	"github.com/nephrawn/monitor-worker/alerts"
)

func emailSubject(alert *alerts.Alert) string {
	return fmt.Sprintf("[%s] %s — patient %s", alert.Severity, alert.RuleName, alert.PatientId)
}

func emailText(alert *alerts.Alert, clinicianName string) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "Hello %s,\n\n", clinicianName)
	fmt.Fprintf(&b, "A %s alert was raised for patient %s: %s.\n\n", alert.Severity, alert.PatientId, alert.RuleName)
	fmt.Fprintf(&b, "%s\n\n", describeInputs(alert.Inputs))
	fmt.Fprintf(&b, "Triggered at %s.\n", alert.TriggeredAt.Format("Jan 2, 2006 15:04 MST"))
	b.WriteString("\nPlease review the patient's readings in the clinician portal.\n")
	return b.String()
}

func emailHTML(alert *alerts.Alert, clinicianName string) string {
	b := strings.Builder{}
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<p>Hello %s,</p>", clinicianName)
	fmt.Fprintf(&b, "<p>A <strong>%s</strong> alert was raised for patient %s: <strong>%s</strong>.</p>",
		alert.Severity, alert.PatientId, alert.RuleName)
	fmt.Fprintf(&b, "<p>%s</p>", describeInputs(alert.Inputs))
	fmt.Fprintf(&b, "<p>Triggered at %s.</p>", alert.TriggeredAt.Format("Jan 2, 2006 15:04 MST"))
	b.WriteString("<p>Please review the patient's readings in the clinician portal.</p>")
	b.WriteString("</body></html>")
	return b.String()
}

func describeInputs(inputs alerts.TriggerInputs) string {
	switch inputs.Kind {
	case alerts.InputsKindWindowDelta:
		d := inputs.WindowDelta
		if d == nil {
			return ""
		}
		return fmt.Sprintf("Change of %.2f %s over the last %d hours across %d readings (warning at %.2f, critical at %.2f).",
			d.Delta, d.Unit, d.WindowHours, len(d.Points), d.WarningThreshold, d.CriticalThreshold)
	case alerts.InputsKindThreshold:
		t := inputs.Threshold
		if t == nil {
			return ""
		}
		direction := "above"
		if t.Comparison == alerts.ComparisonAtOrBelow {
			direction = "below"
		}
		return fmt.Sprintf("Latest reading of %.2f %s is at or %s the %.2f bound (critical at %.2f).",
			t.Value, t.Unit, direction, t.WarningBound, t.CriticalBound)
	}
	return ""
}
