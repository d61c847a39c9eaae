package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/eva-commerce/giftwrap/internal/services"
)

// PubSubEventPublisher publishes gift wrap preference events to a Pub/Sub topic.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a Pub/Sub backed preference event publisher.
func NewPubSubEventPublisher(topic *pubsub.Topic) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishPreferenceChanged enqueues a preference change message on the configured topic.
func (p *PubSubEventPublisher) PublishPreferenceChanged(ctx context.Context, event services.PreferenceChangedEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal preference event: %w", err)
	}

	attrs := map[string]string{
		"event": services.EventPreferenceChanged,
	}
	setAttr(attrs, "sessionId", event.SessionID)
	setAttr(attrs, "source", event.Source)
	if event.GiftWrap {
		attrs["giftWrap"] = "yes"
	} else {
		attrs["giftWrap"] = "no"
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish preference event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
