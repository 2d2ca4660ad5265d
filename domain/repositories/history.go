package repositories

import (
	"context"

	"github.com/relaypoint/console/domain/entities"
)

// HistoryService fetches the ordered batch of prior messages used once at
// startup to seed the message stream.
type HistoryService interface {
	Fetch(ctx context.Context) ([]*entities.Message, error)
}
