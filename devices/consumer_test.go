package devices_test

import (
	"errors"

	"github.com/Shopify/sarama"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tidepool-org/go-common/events"
	"go.uber.org/zap"

	"github.com/nephrawn/monitor-worker/devices"
	"github.com/nephrawn/monitor-worker/measurements"
	measurementsTest "github.com/nephrawn/monitor-worker/measurements/test"
	"github.com/nephrawn/monitor-worker/test"
	"github.com/nephrawn/monitor-worker/units"
)

var _ = Describe("ReadingsConsumer", func() {
	var repo *measurementsTest.FakeRepository
	var evaluator *measurementsTest.RecordingEvaluator
	var consumer events.MessageConsumer

	message := func(payload []byte) *sarama.ConsumerMessage {
		return &sarama.ConsumerMessage{
			Topic: "device.readings",
			Value: payload,
		}
	}

	BeforeEach(func() {
		repo = measurementsTest.NewFakeRepository()
		evaluator = measurementsTest.NewRecordingEvaluator()
		logger := zap.NewNop().Sugar()
		dedup := measurements.NewDeduplicator(repo)
		ingestor := measurements.NewIngestor(repo, dedup, evaluator, logger)

		var err error
		consumer, err = devices.NewReadingsConsumer(devices.Params{
			Logger:   logger,
			Ingestor: ingestor,
		})
		Expect(err).ToNot(HaveOccurred())
	})

	It("ingests every reading of a batch", func() {
		fixture, err := test.LoadFixture("test/fixtures/readingsevent.json")
		Expect(err).ToNot(HaveOccurred())

		Expect(consumer.HandleKafkaMessage(message(fixture))).To(Succeed())

		stored := repo.All()
		Expect(stored).To(HaveLen(3))
		Expect(evaluator.Calls()).To(HaveLen(3))

		byType := map[units.Type]measurements.Measurement{}
		for _, m := range stored {
			byType[m.Type] = m
		}
		Expect(byType[units.TypeWeight].Unit).To(Equal("kg"))
		Expect(byType[units.TypeWeight].Value).To(BeNumerically("~", 72.5747, 0.0001))
		Expect(byType[units.TypeBPSystolic].Value).To(Equal(165.0))
		Expect(byType[units.TypeHeartRate].Value).To(Equal(72.0))
	})

	It("is idempotent across redelivered batches", func() {
		fixture, err := test.LoadFixture("test/fixtures/readingsevent.json")
		Expect(err).ToNot(HaveOccurred())

		Expect(consumer.HandleKafkaMessage(message(fixture))).To(Succeed())
		Expect(consumer.HandleKafkaMessage(message(fixture))).To(Succeed())

		Expect(repo.All()).To(HaveLen(3))
	})

	It("drops messages that cannot be unmarshaled", func() {
		Expect(consumer.HandleKafkaMessage(message([]byte("not json")))).To(Succeed())
		Expect(repo.All()).To(BeEmpty())
	})

	It("skips events without readings", func() {
		Expect(consumer.HandleKafkaMessage(message([]byte(`{"vendor":"withings","patientId":"patient-1","readings":[]}`)))).To(Succeed())
		Expect(repo.All()).To(BeEmpty())
	})

	It("ignores nil messages", func() {
		Expect(consumer.HandleKafkaMessage(nil)).To(Succeed())
	})

	It("drops readings with unknown type tags and keeps the rest", func() {
		payload := []byte(`{
			"vendor": "withings",
			"patientId": "patient-1",
			"readings": [
				{"id": "r-1", "type": "temperature", "value": 37, "unit": "c", "time": 1755680400000},
				{"id": "r-2", "type": "weight", "value": 72.5, "unit": "kg", "time": 1755680400000}
			]
		}`)

		Expect(consumer.HandleKafkaMessage(message(payload))).To(Succeed())
		Expect(repo.All()).To(HaveLen(1))
		Expect(repo.All()[0].Type).To(Equal(units.TypeWeight))
	})

	It("drops readings the normalizer rejects and keeps the rest", func() {
		payload := []byte(`{
			"vendor": "withings",
			"patientId": "patient-1",
			"readings": [
				{"id": "r-1", "type": "weight", "value": 72.5, "unit": "stone", "time": 1755680400000},
				{"id": "r-2", "type": "spo2", "value": 250, "unit": "%", "time": 1755680400000},
				{"id": "r-3", "type": "weight", "value": 72.5, "unit": "kg", "time": 1755680400000}
			]
		}`)

		Expect(consumer.HandleKafkaMessage(message(payload))).To(Succeed())
		Expect(repo.All()).To(HaveLen(1))
	})

	It("returns transient store errors for redelivery", func() {
		repo.CreateErr = errors.New("connection reset")

		fixture, err := test.LoadFixture("test/fixtures/readingsevent.json")
		Expect(err).ToNot(HaveOccurred())

		Expect(consumer.HandleKafkaMessage(message(fixture))).ToNot(Succeed())
	})
})
