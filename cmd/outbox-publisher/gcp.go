package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// orderedPublisherFactory hands out one ordering-enabled publisher per topic.
// The service polls from a single goroutine, so the cache needs no lock.
func orderedPublisherFactory(client pubSubClient) publisherFactory {
	cache := make(map[string]publisher)
	return func(topic string) publisher {
		if pub, ok := cache[topic]; ok {
			return pub
		}
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		pub := &gcpPublisher{publisher: p}
		cache[topic] = pub
		return pub
	}
}

type gcpPublisher struct {
	publisher *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{
		result:    p.publisher.Publish(ctx, msg),
		publisher: p.publisher,
		key:       msg.OrderingKey,
	}
}

type gcpPublishResult struct {
	result    *gcppubsub.PublishResult
	publisher *gcppubsub.Publisher
	key       string
}

// Get waits for the server ack. A failed publish pauses its ordering key, so
// the key is resumed here; the row itself is retried on a later poll.
func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.result.Get(ctx)
	if err != nil && r.key != "" {
		r.publisher.ResumePublish(r.key)
	}
	return id, err
}
