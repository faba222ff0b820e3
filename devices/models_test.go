package devices_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nephrawn/monitor-worker/devices"
	"github.com/nephrawn/monitor-worker/stream"
	"github.com/nephrawn/monitor-worker/test"
	"github.com/nephrawn/monitor-worker/units"
)

var _ = Describe("ReadingsEvent", func() {
	Context("With a vendor sync payload", func() {
		var event devices.ReadingsEvent

		BeforeEach(func() {
			event = devices.ReadingsEvent{}
			fixture, err := test.LoadFixture("test/fixtures/readingsevent.json")
			Expect(err).ToNot(HaveOccurred())
			Expect(json.Unmarshal(fixture, &event)).To(Succeed())
		})

		It("unmarshals the batch", func() {
			Expect(event.Vendor).To(Equal("withings"))
			Expect(event.PatientId).To(Equal("patient-1"))
			Expect(event.Readings).To(HaveLen(3))
			Expect(event.HasReadings()).To(BeTrue())
		})

		It("parses epoch millisecond timestamps", func() {
			Expect(event.Readings[0].Time.Time()).To(Equal(time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC)))
		})
	})

	DescribeTable("HasReadings",
		func(event devices.ReadingsEvent, expected bool) {
			Expect(event.HasReadings()).To(Equal(expected))
		},
		Entry("missing vendor", devices.ReadingsEvent{PatientId: "patient-1", Readings: []devices.VendorReading{{}}}, false),
		Entry("missing patient", devices.ReadingsEvent{Vendor: "withings", Readings: []devices.VendorReading{{}}}, false),
		Entry("empty batch", devices.ReadingsEvent{Vendor: "withings", PatientId: "patient-1"}, false),
		Entry("complete", devices.ReadingsEvent{Vendor: "withings", PatientId: "patient-1", Readings: []devices.VendorReading{{}}}, true),
	)
})

var _ = Describe("VendorReading", func() {
	at := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	It("maps vendor type tags onto measurement types", func() {
		reading := devices.VendorReading{
			Id:    "withings-reading-1001",
			Type:  "weight",
			Value: 160,
			Unit:  "lbs",
			Time:  stream.NewMillis(at),
		}

		submission, ok := reading.ToSubmission("withings", "patient-1")
		Expect(ok).To(BeTrue())
		Expect(submission.PatientId).To(Equal("patient-1"))
		Expect(submission.Type).To(Equal(units.TypeWeight))
		Expect(submission.Value).To(Equal(160.0))
		Expect(submission.Unit).To(Equal("lbs"))
		Expect(submission.Source).To(Equal("withings"))
		Expect(submission.ExternalId).ToNot(BeNil())
		Expect(*submission.ExternalId).To(Equal("withings-reading-1001"))
		Expect(submission.Time).ToNot(BeNil())
		Expect(*submission.Time).To(Equal(at))
	})

	DescribeTable("vendor type tag mapping",
		func(tag string, expected units.Type) {
			submission, ok := devices.VendorReading{Type: tag}.ToSubmission("withings", "patient-1")
			Expect(ok).To(BeTrue())
			Expect(submission.Type).To(Equal(expected))
		},
		Entry("weight", "weight", units.TypeWeight),
		Entry("systolic alias", "systolic", units.TypeBPSystolic),
		Entry("bp_systolic", "bp_systolic", units.TypeBPSystolic),
		Entry("diastolic alias", "diastolic", units.TypeBPDiastolic),
		Entry("spo2", "spo2", units.TypeSpO2),
		Entry("oxygen saturation alias", "oxygen_saturation", units.TypeSpO2),
		Entry("pulse alias", "pulse", units.TypeHeartRate),
		Entry("upper case tag", "WEIGHT", units.TypeWeight),
		Entry("body fat", "body_fat", units.TypeBodyFatPercent),
	)

	It("does not map unknown type tags", func() {
		_, ok := devices.VendorReading{Type: "temperature"}.ToSubmission("withings", "patient-1")
		Expect(ok).To(BeFalse())
	})
})
