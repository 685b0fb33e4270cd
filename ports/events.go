package ports

import (
	"context"

	"github.com/lumenpay/lumenvault/core"
)

// EventPublisher notifies other services about authentication activity
type EventPublisher interface {
	PublishUserCreated(ctx context.Context, user core.User) error
	PublishLogin(ctx context.Context, identity core.Identity) error
}
