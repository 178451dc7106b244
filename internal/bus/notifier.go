package bus

import (
	"context"
	"encoding/json"

	"github.com/voicefusion-labs/voicefusion-core/internal/protocol"
)

// Notifier publishes turn events onto the bus. It satisfies the pipeline's
// Publisher contract.
type Notifier struct {
	client *Client
}

func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) TurnCompleted(_ context.Context, event protocol.TurnCompleted) error {
	return n.publish(protocol.SubjectTurnCompleted, event)
}

func (n *Notifier) TurnFailed(_ context.Context, event protocol.TurnFailed) error {
	return n.publish(protocol.SubjectTurnFailed, event)
}

func (n *Notifier) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return n.client.Conn().Publish(subject, data)
}
