package alerts_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/nephrawn/monitor-worker/alerts"
	alertsTest "github.com/nephrawn/monitor-worker/alerts/test"
	"github.com/nephrawn/monitor-worker/units"
)

var _ = Describe("Engine", func() {
	var ctx context.Context

	warningTrigger := alerts.Trigger{
		Severity: alerts.SeverityWarning,
		Inputs:   alerts.TriggerInputs{Kind: alerts.InputsKindThreshold, Threshold: &alerts.ThresholdInputs{}},
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("only evaluates rules matching the measurement type", func() {
		weightRule := &alertsTest.StaticRule{
			RuleId:          "weight-rule",
			MeasurementType: units.TypeWeight,
			Trigger:         &warningTrigger,
		}
		heartRateRule := &alertsTest.StaticRule{
			RuleId:          "heart-rate-rule",
			MeasurementType: units.TypeHeartRate,
			Trigger:         &warningTrigger,
		}
		engine := alerts.NewEngine([]alerts.Rule{weightRule, heartRateRule}, zap.NewNop().Sugar())

		fired := engine.Evaluate(ctx, "patient-1", units.TypeWeight)
		Expect(fired).To(HaveLen(1))
		Expect(fired[0].Rule.Id()).To(Equal("weight-rule"))
	})

	It("drops rules that do not trigger", func() {
		quiet := &alertsTest.StaticRule{
			RuleId:          "quiet-rule",
			MeasurementType: units.TypeWeight,
		}
		engine := alerts.NewEngine([]alerts.Rule{quiet}, zap.NewNop().Sugar())

		Expect(engine.Evaluate(ctx, "patient-1", units.TypeWeight)).To(BeEmpty())
	})

	It("isolates rule failures from sibling rules", func() {
		failing := &alertsTest.StaticRule{
			RuleId:          "failing-rule",
			MeasurementType: units.TypeWeight,
			Err:             errors.New("history unavailable"),
		}
		healthy := &alertsTest.StaticRule{
			RuleId:          "healthy-rule",
			MeasurementType: units.TypeWeight,
			Trigger:         &warningTrigger,
		}
		engine := alerts.NewEngine([]alerts.Rule{failing, healthy}, zap.NewNop().Sugar())

		fired := engine.Evaluate(ctx, "patient-1", units.TypeWeight)
		Expect(fired).To(HaveLen(1))
		Expect(fired[0].Rule.Id()).To(Equal("healthy-rule"))
	})
})
