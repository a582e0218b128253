package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mark3labs/contestr/internal/gateway"
	cnats "github.com/mark3labs/contestr/internal/nats"
)

// NATS keeps values in the JetStream key-value bucket of the embedded broker.
type NATS struct {
	kv jetstream.KeyValue
}

// NewNATS binds to the client bucket, creating it if needed.
func NewNATS(ctx context.Context, js jetstream.JetStream) (*NATS, error) {
	kv, err := cnats.SetupKV(ctx, js)
	if err != nil {
		return nil, fmt.Errorf("setting up key-value bucket: %w", err)
	}
	return &NATS{kv: kv}, nil
}

// Put stores value under key.
func (n *NATS) Put(ctx context.Context, key, value string) error {
	if _, err := n.kv.Put(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// Get returns the value under key or gateway.ErrKeyNotFound.
func (n *NATS) Get(ctx context.Context, key string) (string, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", gateway.ErrKeyNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return string(entry.Value()), nil
}

// Delete removes key. Missing keys are not an error.
func (n *NATS) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
