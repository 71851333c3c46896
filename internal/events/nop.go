// Package events holds the publisher used when no broker is configured.
package events

import "github.com/mohitc/banking-ledger/internal/interfaces"

// NopPublisher drops events. Used for local runs without kafka and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(topic string, event any) error { return nil }

var _ interfaces.EventPublisher = NopPublisher{}
