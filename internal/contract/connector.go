package contract

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/harrison/conductor/internal/models"
)

// Connector delivers Messages between worlds. The core never assumes a
// specific transport (out of scope); it only needs Send and a listen/stop
// pair so a world can be wired into a process-local or networked bus.
type Connector interface {
	Send(ctx context.Context, targetWorldID uuid.UUID, msg Message) error
	StartListening(ctx context.Context, world uuid.UUID) (<-chan Message, error)
	StopListening(ctx context.Context, world uuid.UUID) error
}

// InProcessConnector is a process-local Connector: a registry of channels
// keyed by world id, grounded on the same map-of-primitives-under-a-mutex
// shape as locktable's gate and the coercion project's planlocks.Group.
type InProcessConnector struct {
	mu      sync.Mutex
	inboxes map[uuid.UUID]chan Message
}

// NewInProcessConnector returns an empty InProcessConnector.
func NewInProcessConnector() *InProcessConnector {
	return &InProcessConnector{inboxes: make(map[uuid.UUID]chan Message)}
}

// StartListening opens an inbox for world and returns it. Calling it twice
// for the same world replaces the previous inbox.
func (c *InProcessConnector) StartListening(ctx context.Context, world uuid.UUID) (<-chan Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Message, 16)
	c.inboxes[world] = ch
	return ch, nil
}

// StopListening closes and removes world's inbox, if any.
func (c *InProcessConnector) StopListening(ctx context.Context, world uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.inboxes[world]; ok {
		close(ch)
		delete(c.inboxes, world)
	}
	return nil
}

// Send delivers msg to targetWorldID's inbox. ErrNotFound if the target
// isn't currently listening; ErrTransportFailure if its inbox is full.
func (c *InProcessConnector) Send(ctx context.Context, targetWorldID uuid.UUID, msg Message) error {
	c.mu.Lock()
	ch, ok := c.inboxes[targetWorldID]
	c.mu.Unlock()
	if !ok {
		return models.NotFoundf("world %s not listening", targetWorldID)
	}
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send to %s: %w", targetWorldID, ctx.Err())
	default:
		return models.TransportFailuref("inbox for %s is full", targetWorldID)
	}
}
