package cli

import (
	"context"

	"github.com/google/uuid"

	"github.com/relaycrm/calsync/internal/app"
)

var container *app.Container

// SetContainer wires the application container for CLI commands.
func SetContainer(c *app.Container) {
	container = c
}

// GetContainer returns the wired application container.
func GetContainer() *app.Container {
	return container
}

// CurrentUserID returns the configured user, or uuid.Nil when the
// configured value is not a valid UUID.
func CurrentUserID() uuid.UUID {
	if container == nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(container.Config.UserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func contextWithCommandInfo(ctx context.Context, info commandContext) context.Context {
	return context.WithValue(ctx, commandContextKey{}, info)
}

func commandInfoFromContext(ctx context.Context) (commandContext, bool) {
	info, ok := ctx.Value(commandContextKey{}).(commandContext)
	return info, ok
}
