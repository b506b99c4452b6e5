// Package notify hands notifications and domain events to downstream queues.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/telehealth-coordination/pkg/logging"
)

// Dispatcher delivers a user notification.
type Dispatcher interface {
	Notify(ctx context.Context, userID, message string, metadata map[string]any) error
}

// sqsAPI is the subset of *sqs.Client used here.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type notificationBody struct {
	UserID   string         `json:"user_id"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SQSDispatcher enqueues notifications for the delivery service.
type SQSDispatcher struct {
	client   sqsAPI
	queueURL string
}

func NewSQSDispatcher(client sqsAPI, queueURL string) *SQSDispatcher {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return &SQSDispatcher{client: client, queueURL: queueURL}
}

func (d *SQSDispatcher) Notify(ctx context.Context, userID, message string, metadata map[string]any) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("notify: user id required")
	}
	body, err := json.Marshal(notificationBody{UserID: userID, Message: message, Metadata: metadata})
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if id, ok := metadata["event_id"].(string); ok && id != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"event_id": {DataType: aws.String("String"), StringValue: aws.String(id)},
		}
	}
	if _, err := d.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}

// LogDispatcher only logs. It stands in when no queue is configured.
type LogDispatcher struct {
	logger *logging.Logger
}

func NewLogDispatcher(logger *logging.Logger) *LogDispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Notify(_ context.Context, userID, message string, metadata map[string]any) error {
	d.logger.Info("notification (log only)", "user_id", userID, "message", message, "metadata", metadata)
	return nil
}
