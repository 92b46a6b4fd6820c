package notify

import (
	"context"
	"encoding/json"

	awspkg "github.com/Harrison-Muraya/L-SalesPro/pkg/aws"
)

type snsPublisher struct {
	client   awspkg.SNSPublisher
	topicArn string
}

func (p snsPublisher) publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.topicArn, body, map[string]string{"event_type": evt.Type})
}

// NewSNSNotifier publishes every event as JSON to topicArn with an event_type attribute.
func NewSNSNotifier(client awspkg.SNSPublisher, topicArn string) Notifier {
	return busNotifier{pub: snsPublisher{client: client, topicArn: topicArn}}
}
