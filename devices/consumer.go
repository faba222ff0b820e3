package devices

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/nephrawn/monitor-worker/measurements"
	"github.com/nephrawn/monitor-worker/stream"
	"github.com/nephrawn/monitor-worker/units"
	"github.com/tidepool-org/go-common/events"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	deviceReadingsTopic = "device.readings"
	defaultTimeout      = 30 * time.Second

	// Bounded fan-out for batch backfills so one large sync cannot saturate
	// the store.
	threadiness = 4
)

var Module = fx.Provide(fx.Annotated{
	Group:  "consumers",
	Target: CreateConsumerGroup,
})

type ReadingsConsumer struct {
	logger   *zap.SugaredLogger
	ingestor measurements.Ingestor
}

type Params struct {
	fx.In

	Logger   *zap.SugaredLogger
	Ingestor measurements.Ingestor
}

func CreateConsumerGroup(p Params) (events.EventConsumer, error) {
	config, err := stream.GetConfig()
	if err != nil {
		return nil, err
	}

	config.KafkaTopic = deviceReadingsTopic

	return events.NewFaultTolerantConsumerGroup(config, CreateConsumer(p))
}

func CreateConsumer(p Params) events.ConsumerFactory {
	return func() (events.MessageConsumer, error) {
		delegate, err := NewReadingsConsumer(p)
		if err != nil {
			return nil, err
		}
		return stream.NewRetryingConsumer(delegate), nil
	}
}

func NewReadingsConsumer(p Params) (events.MessageConsumer, error) {
	return &ReadingsConsumer{
		logger:   p.Logger,
		ingestor: p.Ingestor,
	}, nil
}

func (c *ReadingsConsumer) Initialize(config *events.CloudEventsConfig) error {
	return nil
}

func (c *ReadingsConsumer) HandleKafkaMessage(cm *sarama.ConsumerMessage) error {
	if cm == nil {
		return nil
	}

	return c.handleMessage(cm)
}

func (c *ReadingsConsumer) handleMessage(cm *sarama.ConsumerMessage) error {
	c.logger.Debugw("handling kafka message", "offset", cm.Offset)
	event := ReadingsEvent{
		Offset: cm.Offset,
	}
	if err := json.Unmarshal(cm.Value, &event); err != nil {
		// A payload that cannot be parsed will never succeed; drop it
		// instead of poisoning the partition.
		c.logger.Warnw("unable to unmarshal message", "offset", cm.Offset, zap.Error(err))
		return nil
	}

	if !event.HasReadings() {
		c.logger.Debugw("skipping event without readings", "offset", cm.Offset)
		return nil
	}

	if err := c.handleReadingsEvent(event); err != nil {
		c.logger.Errorw("unable to process readings event", "offset", cm.Offset, zap.Error(err))
		return err
	}
	return nil
}

func (c *ReadingsConsumer) handleReadingsEvent(event ReadingsEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(threadiness)
	group, groupCtx := errgroup.WithContext(ctx)

	for _, reading := range event.Readings {
		reading := reading
		submission, ok := reading.ToSubmission(event.Vendor, event.PatientId)
		if !ok {
			c.logger.Warnw("skipping reading with unknown type",
				"vendor", event.Vendor,
				"patientId", event.PatientId,
				"readingType", reading.Type,
			)
			continue
		}

		if err := sem.Acquire(groupCtx, 1); err != nil {
			return err
		}
		group.Go(func() error {
			defer sem.Release(1)
			return c.submit(groupCtx, submission)
		})
	}

	return group.Wait()
}

func (c *ReadingsConsumer) submit(ctx context.Context, submission measurements.Submission) error {
	result, err := c.ingestor.SubmitMeasurement(ctx, submission)
	if err != nil {
		// Rejections are permanent: retrying a reading with an unsupported
		// or implausible payload can never succeed.
		if units.IsRejection(err) {
			c.logger.Warnw("dropping rejected device reading",
				"patientId", submission.PatientId,
				"type", submission.Type,
				"source", submission.Source,
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	if result.IsDuplicate {
		c.logger.Debugw("device reading already ingested",
			"patientId", submission.PatientId,
			"source", submission.Source,
			"externalId", submission.ExternalId,
		)
	}
	return nil
}
