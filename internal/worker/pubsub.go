package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job is the slice of a precache job the trigger dispatch needs. Both
// CoverageJob and InsightsJob implement it.
type Job interface {
	Name() string
	Run() error
}

// PubSubConfig holds configuration for the trigger subscription.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Jobs             []Job
	Logger           zerolog.Logger
}

// PrecacheMessage is a precache trigger published by ops tooling or an
// external scheduler. JobType matches a job's Name.
type PrecacheMessage struct {
	JobType string `json:"job_type"`
}

// PubSubHandler runs precache jobs on demand when a trigger message
// arrives on the subscription.
type PubSubHandler struct {
	client     *pubsub.Client
	subscriber *pubsub.Subscriber
	jobs       map[string]Job
	log        zerolog.Logger
}

// NewPubSubHandler connects to the project and prepares the subscription
// for receiving.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	sub := client.Subscriber(cfg.SubscriptionName)

	// One precache batch at a time, with a lease long enough to cover
	// the job timeout.
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	sub.ReceiveSettings.MaxExtension = 10 * time.Minute

	byName := make(map[string]Job, len(cfg.Jobs))
	for _, job := range cfg.Jobs {
		byName[job.Name()] = job
	}

	return &PubSubHandler{
		client:     client,
		subscriber: sub,
		jobs:       byName,
		log:        cfg.Logger.With().Str("subscription", cfg.SubscriptionName).Logger(),
	}, nil
}

// Start blocks receiving trigger messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.log.Info().Msg("listening for precache triggers")
	return h.subscriber.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
		h.dispatch(msg)
	})
}

// Close releases the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// dispatch runs the job named by the trigger. Malformed payloads and
// unknown job names are acked so they do not redeliver forever; only a
// failed run is nacked.
func (h *PubSubHandler) dispatch(msg *pubsub.Message) {
	log := h.log.With().Str("message_id", msg.ID).Logger()

	var trigger PrecacheMessage
	if err := json.Unmarshal(msg.Data, &trigger); err != nil {
		log.Error().Err(err).Msg("dropping unparseable trigger")
		msg.Ack()
		return
	}

	job, ok := h.jobs[trigger.JobType]
	if !ok {
		log.Warn().Str("job_type", trigger.JobType).Msg("dropping trigger for unknown job")
		msg.Ack()
		return
	}

	log = log.With().Str("job_type", trigger.JobType).Logger()
	log.Info().Time("published_at", msg.PublishTime).Msg("trigger received")

	start := time.Now()
	if err := job.Run(); err != nil {
		log.Error().Err(err).Msg("triggered job failed, nacking for redelivery")
		msg.Nack()
		return
	}

	log.Info().Dur("duration", time.Since(start)).Msg("triggered job done")
	msg.Ack()
}
