package alerts_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nephrawn/monitor-worker/alerts"
	"github.com/nephrawn/monitor-worker/measurements"
	measurementsTest "github.com/nephrawn/monitor-worker/measurements/test"
	"github.com/nephrawn/monitor-worker/units"
)

func testRulesConfig() alerts.RulesConfig {
	return alerts.RulesConfig{
		WeightGainWindow:      48 * time.Hour,
		WeightGainWarningKg:   1.36,
		WeightGainCriticalKg:  2.27,
		SystolicHighWarning:   160,
		SystolicHighCritical:  180,
		SystolicLowWarning:    90,
		SystolicLowCritical:   80,
		DiastolicHighWarning:  100,
		DiastolicHighCritical: 120,
		SpO2LowWarning:        88,
		SpO2LowCritical:       85,
		HeartRateHighWarning:  120,
		HeartRateHighCritical: 140,
		HeartRateLowWarning:   45,
		HeartRateLowCritical:  40,
	}
}

func seedWeight(repo *measurementsTest.FakeRepository, patientId string, value float64, at time.Time) {
	repo.Seed(measurements.Measurement{
		PatientId: patientId,
		Type:      units.TypeWeight,
		Value:     value,
		Unit:      "kg",
		Source:    measurements.SourceManual,
		Time:      at,
	})
}

func seedReading(repo *measurementsTest.FakeRepository, patientId string, t units.Type, value float64, unit string) {
	repo.Seed(measurements.Measurement{
		PatientId: patientId,
		Type:      t,
		Value:     value,
		Unit:      unit,
		Source:    measurements.SourceManual,
		Time:      time.Now().UTC(),
	})
}

var _ = Describe("WeightGainRule", func() {
	var repo *measurementsTest.FakeRepository
	var rule *alerts.WeightGainRule
	var ctx context.Context

	BeforeEach(func() {
		repo = measurementsTest.NewFakeRepository()
		rule = alerts.NewWeightGainRule(testRulesConfig(), repo)
		ctx = context.Background()
	})

	It("does not trigger with fewer than two points in the window", func() {
		seedWeight(repo, "patient-1", 70, time.Now().UTC())

		trigger, err := rule.Evaluate(ctx, "patient-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(trigger).To(BeNil())
	})

	It("does not trigger below the warning threshold", func() {
		now := time.Now().UTC()
		seedWeight(repo, "patient-1", 70, now.Add(-24*time.Hour))
		seedWeight(repo, "patient-1", 71, now)

		trigger, err := rule.Evaluate(ctx, "patient-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(trigger).To(BeNil())
	})

	It("triggers WARNING exactly at the warning threshold", func() {
		now := time.Now().UTC()
		seedWeight(repo, "patient-1", 70, now.Add(-24*time.Hour))
		seedWeight(repo, "patient-1", 71.36, now)

		trigger, err := rule.Evaluate(ctx, "patient-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(trigger).ToNot(BeNil())
		Expect(trigger.Severity).To(Equal(alerts.SeverityWarning))
		Expect(trigger.Inputs.Kind).To(Equal(alerts.InputsKindWindowDelta))
		Expect(trigger.Inputs.WindowDelta.Delta).To(BeNumerically("~", 1.36, 0.0001))
		Expect(trigger.Inputs.WindowDelta.Points).To(HaveLen(2))
	})

	It("triggers CRITICAL exactly at the critical threshold", func() {
		now := time.Now().UTC()
		seedWeight(repo, "patient-1", 70, now.Add(-24*time.Hour))
		seedWeight(repo, "patient-1", 72.27, now)

		trigger, err := rule.Evaluate(ctx, "patient-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(trigger).ToNot(BeNil())
		Expect(trigger.Severity).To(Equal(alerts.SeverityCritical))
	})

	It("ignores points outside the window", func() {
		now := time.Now().UTC()
		seedWeight(repo, "patient-1", 68, now.Add(-72*time.Hour))
		seedWeight(repo, "patient-1", 70, now.Add(-24*time.Hour))
		seedWeight(repo, "patient-1", 71, now)

		trigger, err := rule.Evaluate(ctx, "patient-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(trigger).To(BeNil())
	})

	It("uses the oldest and newest points of the window", func() {
		now := time.Now().UTC()
		seedWeight(repo, "patient-1", 70, now.Add(-40*time.Hour))
		seedWeight(repo, "patient-1", 73, now.Add(-20*time.Hour))
		seedWeight(repo, "patient-1", 71.8, now)

		trigger, err := rule.Evaluate(ctx, "patient-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(trigger).ToNot(BeNil())
		Expect(trigger.Inputs.WindowDelta.Delta).To(BeNumerically("~", 1.8, 0.0001))
		Expect(trigger.Inputs.WindowDelta.Points).To(HaveLen(3))
	})
})

var _ = Describe("Threshold rules", func() {
	var repo *measurementsTest.FakeRepository
	var rules map[string]alerts.Rule
	var ctx context.Context

	BeforeEach(func() {
		repo = measurementsTest.NewFakeRepository()
		rules = map[string]alerts.Rule{}
		for _, rule := range alerts.DefaultRules(testRulesConfig(), repo) {
			rules[rule.Id()] = rule
		}
		ctx = context.Background()
	})

	It("does not trigger without any measurement", func() {
		trigger, err := rules["bp-systolic-high"].Evaluate(ctx, "patient-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(trigger).To(BeNil())
	})

	DescribeTable("latest-value classification",
		func(ruleId string, t units.Type, unit string, value float64, expected *alerts.Severity) {
			seedReading(repo, "patient-1", t, value, unit)

			trigger, err := rules[ruleId].Evaluate(ctx, "patient-1")
			Expect(err).ToNot(HaveOccurred())
			if expected == nil {
				Expect(trigger).To(BeNil())
				return
			}
			Expect(trigger).ToNot(BeNil())
			Expect(trigger.Severity).To(Equal(*expected))
			Expect(trigger.Inputs.Kind).To(Equal(alerts.InputsKindThreshold))
			Expect(trigger.Inputs.Threshold.Value).To(Equal(value))
		},
		Entry("systolic below the warning bound", "bp-systolic-high", units.TypeBPSystolic, "mmHg", 159.0, nil),
		Entry("systolic at the warning bound", "bp-systolic-high", units.TypeBPSystolic, "mmHg", 160.0, severity(alerts.SeverityWarning)),
		Entry("systolic at the critical bound", "bp-systolic-high", units.TypeBPSystolic, "mmHg", 180.0, severity(alerts.SeverityCritical)),
		Entry("systolic above the low warning bound", "bp-systolic-low", units.TypeBPSystolic, "mmHg", 91.0, nil),
		Entry("systolic at the low warning bound", "bp-systolic-low", units.TypeBPSystolic, "mmHg", 90.0, severity(alerts.SeverityWarning)),
		Entry("systolic at the low critical bound", "bp-systolic-low", units.TypeBPSystolic, "mmHg", 80.0, severity(alerts.SeverityCritical)),
		Entry("diastolic at the warning bound", "bp-diastolic-high", units.TypeBPDiastolic, "mmHg", 100.0, severity(alerts.SeverityWarning)),
		Entry("diastolic at the critical bound", "bp-diastolic-high", units.TypeBPDiastolic, "mmHg", 120.0, severity(alerts.SeverityCritical)),
		Entry("spo2 above the warning bound", "spo2-low", units.TypeSpO2, "%", 89.0, nil),
		Entry("spo2 at the warning bound", "spo2-low", units.TypeSpO2, "%", 88.0, severity(alerts.SeverityWarning)),
		Entry("spo2 at the critical bound", "spo2-low", units.TypeSpO2, "%", 85.0, severity(alerts.SeverityCritical)),
		Entry("normal heart rate", "heart-rate-abnormal", units.TypeHeartRate, "bpm", 72.0, nil),
		Entry("tachycardia warning", "heart-rate-abnormal", units.TypeHeartRate, "bpm", 120.0, severity(alerts.SeverityWarning)),
		Entry("tachycardia critical", "heart-rate-abnormal", units.TypeHeartRate, "bpm", 140.0, severity(alerts.SeverityCritical)),
		Entry("bradycardia warning", "heart-rate-abnormal", units.TypeHeartRate, "bpm", 45.0, severity(alerts.SeverityWarning)),
		Entry("bradycardia critical", "heart-rate-abnormal", units.TypeHeartRate, "bpm", 40.0, severity(alerts.SeverityCritical)),
	)

	It("only considers the most recent measurement", func() {
		now := time.Now().UTC()
		repo.Seed(measurements.Measurement{
			PatientId: "patient-1",
			Type:      units.TypeBPSystolic,
			Value:     190,
			Unit:      "mmHg",
			Source:    measurements.SourceManual,
			Time:      now.Add(-time.Hour),
		})
		repo.Seed(measurements.Measurement{
			PatientId: "patient-1",
			Type:      units.TypeBPSystolic,
			Value:     130,
			Unit:      "mmHg",
			Source:    measurements.SourceManual,
			Time:      now,
		})

		trigger, err := rules["bp-systolic-high"].Evaluate(ctx, "patient-1")
		Expect(err).ToNot(HaveOccurred())
		Expect(trigger).To(BeNil())
	})
})

func severity(s alerts.Severity) *alerts.Severity {
	return &s
}
