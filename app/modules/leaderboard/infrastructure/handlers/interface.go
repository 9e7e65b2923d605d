package leaderboardhandlers

import (
	"context"

	"github.com/edelkas/inne-sub000/app/events"
)

// Handlers defines the leaderboard reactions to score events.
type Handlers interface {
	// HandleScoreAccepted drops cached pages of the improved board.
	HandleScoreAccepted(ctx context.Context, payload *events.ScoreAcceptedPayloadV1) error
	// HandleScoreWiped drops cached pages of the board a score was removed from.
	HandleScoreWiped(ctx context.Context, payload *events.ScoreWipedPayloadV1) error
}
