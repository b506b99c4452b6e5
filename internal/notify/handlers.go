package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/telehealth-coordination/internal/events"
)

// NotificationHandler delivers notification.requested.v1 outbox entries.
type NotificationHandler struct {
	dispatcher Dispatcher
}

func NewNotificationHandler(d Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: d}
}

func (h *NotificationHandler) Handle(ctx context.Context, entry events.OutboxEntry) error {
	var msg events.NotificationRequestedV1
	if err := entry.Decode(&msg); err != nil {
		return err
	}
	metadata := make(map[string]any, len(msg.Metadata)+1)
	for k, v := range msg.Metadata {
		metadata[k] = v
	}
	metadata["event_id"] = msg.EventID
	return h.dispatcher.Notify(ctx, msg.UserID, msg.Message, metadata)
}

// EventPublisher forwards domain events (shift confirmed or cancelled,
// slot freed) to a queue consumed by downstream services.
type EventPublisher struct {
	client   sqsAPI
	queueURL string
}

func NewEventPublisher(client sqsAPI, queueURL string) *EventPublisher {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return &EventPublisher{client: client, queueURL: queueURL}
}

func (p *EventPublisher) Handle(ctx context.Context, entry events.OutboxEntry) error {
	_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(entry.Payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type":   {DataType: aws.String("String"), StringValue: aws.String(entry.Type)},
			"event_id":     {DataType: aws.String("String"), StringValue: aws.String(entry.ID.String())},
			"aggregate_id": {DataType: aws.String("String"), StringValue: aws.String(entry.Key)},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: publish %s: %w", entry.Type, err)
	}
	return nil
}
