package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/amillerrr/media-ingest/pkg/models"
)

// Publisher announces completed ingests to downstream consumers.
type Publisher interface {
	PublishAssetIngested(ctx context.Context, event models.IngestEvent) error
}

// SQSPublisher publishes ingest events to an SQS queue.
type SQSPublisher struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSPublisher creates an SQSPublisher for the given queue.
func NewSQSPublisher(client *sqs.Client, queueURL string) *SQSPublisher {
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
	}
}

// PublishAssetIngested sends the event as a JSON message.
func (p *SQSPublisher) PublishAssetIngested(ctx context.Context, event models.IngestEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest event: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to publish ingest event: %w", err)
	}

	return nil
}
