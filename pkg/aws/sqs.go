package aws

import (
	"context"
	"fmt"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSSender sends one message with string attributes to a queue.
type SQSSender interface {
	Send(ctx context.Context, body []byte, attributes map[string]string) error
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

type SQSClient struct {
	client   sqsAPI
	queueURL string
}

func NewSQSClient(cfg sdkaws.Config, queueURL string) *SQSClient {
	return &SQSClient{client: sqs.NewFromConfig(cfg), queueURL: queueURL}
}

// ResolveQueueURL accepts either a queue URL or a bare queue name.
func (c *SQSClient) ResolveQueueURL(ctx context.Context, queue string) error {
	if queue == "" {
		return fmt.Errorf("empty queue")
	}
	if strings.HasPrefix(queue, "http://") || strings.HasPrefix(queue, "https://") {
		c.queueURL = queue
		return nil
	}
	out, err := c.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: sdkaws.String(queue)})
	if err != nil {
		return fmt.Errorf("failed to get queue URL for %s: %w", queue, err)
	}
	c.queueURL = sdkaws.ToString(out.QueueUrl)
	return nil
}

func (c *SQSClient) Send(ctx context.Context, body []byte, attributes map[string]string) error {
	if c.queueURL == "" {
		return fmt.Errorf("empty queueURL")
	}

	attrs := make(map[string]types.MessageAttributeValue, len(attributes))
	for k, v := range attributes {
		attrs[k] = types.MessageAttributeValue{
			DataType:    sdkaws.String("String"),
			StringValue: sdkaws.String(v),
		}
	}

	_, err := c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          sdkaws.String(c.queueURL),
		MessageBody:       sdkaws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
