package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/relabs-tech/modelgate/core"
)

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSConfig configures the SQS notifier
type SQSConfig struct {
	QueueURL string
	Region   string
}

// SQSNotifier sends one SQS message per notification. The model and the operation
// are passed as message attributes, so subscribers can filter without parsing the body.
type SQSNotifier struct {
	client   sqsSender
	queueURL string
	fifo     bool
}

// NewSQSNotifier creates a notifier with the default AWS credential chain
func NewSQSNotifier(ctx context.Context, cfg SQSConfig) (*SQSNotifier, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, fmt.Errorf("sqs queue url required")
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("cannot load aws config: %w", err)
	}
	return newSQSNotifier(sqs.NewFromConfig(awsConfig), cfg.QueueURL), nil
}

func newSQSNotifier(client sqsSender, queueURL string) *SQSNotifier {
	return &SQSNotifier{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Notify implements core.Notifier
func (s *SQSNotifier) Notify(ctx context.Context, n core.Notification) error {
	body, err := Encode(ctx, n)
	if err != nil {
		return err
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"model": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.Resource),
			},
			"operation": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Operation)),
			},
		},
	}
	if s.fifo {
		input.MessageGroupId = aws.String(Key(n))
		input.MessageDeduplicationId = aws.String(deduplicationID(n))
	}
	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("cannot send sqs message for %s: %w", Key(n), err)
	}
	return nil
}

// deduplicationID identifies one change of a record, "<model>:<id>:<operation>:<unix nanos>"
func deduplicationID(n core.Notification) string {
	return Key(n) + ":" + string(n.Operation) + ":" + strconv.FormatInt(n.CreatedAt.UnixNano(), 10)
}
