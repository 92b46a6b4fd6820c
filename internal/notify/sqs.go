package notify

import (
	"context"
	"encoding/json"

	awspkg "github.com/Harrison-Muraya/L-SalesPro/pkg/aws"
)

type sqsPublisher struct {
	client awspkg.SQSSender
}

func (p sqsPublisher) publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.client.Send(ctx, body, map[string]string{"event_type": evt.Type, "event_key": evt.Key})
}

// NewSQSNotifier queues every event as JSON for downstream workers.
func NewSQSNotifier(client awspkg.SQSSender) Notifier {
	return busNotifier{pub: sqsPublisher{client: client}}
}
