package leaderboardhandlers

import (
	"context"
	"log/slog"

	"github.com/edelkas/inne-sub000/app/events"
	leaderboardservice "github.com/edelkas/inne-sub000/app/modules/leaderboard/application"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
)

// LeaderboardHandlers handles leaderboard-related events.
type LeaderboardHandlers struct {
	leaderboardService leaderboardservice.Service
	logger             *slog.Logger
}

// NewLeaderboardHandlers creates a new instance of LeaderboardHandlers.
func NewLeaderboardHandlers(leaderboardService leaderboardservice.Service, logger *slog.Logger) Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardHandlers{
		leaderboardService: leaderboardService,
		logger:             logger,
	}
}

func (h *LeaderboardHandlers) invalidate(ctx context.Context, kindName string, id int64, scoreID int64) error {
	kind, err := npp.ParseKind(kindName)
	if err != nil {
		h.logger.WarnContext(ctx, "Dropping event with unknown kind",
			attr.ExtractCorrelationID(ctx),
			attr.String("kind", kindName),
			attr.Int64("score_id", scoreID),
		)
		return nil
	}
	h.leaderboardService.InvalidateBoard(kind, id)
	h.logger.DebugContext(ctx, "Invalidated cached board",
		attr.ExtractCorrelationID(ctx),
		attr.Highscoreable(kind.String(), id),
		attr.Int64("score_id", scoreID),
	)
	return nil
}

func (h *LeaderboardHandlers) HandleScoreAccepted(ctx context.Context, payload *events.ScoreAcceptedPayloadV1) error {
	return h.invalidate(ctx, payload.Kind, payload.HighscoreableID, payload.ScoreID)
}

func (h *LeaderboardHandlers) HandleScoreWiped(ctx context.Context, payload *events.ScoreWipedPayloadV1) error {
	return h.invalidate(ctx, payload.Kind, payload.HighscoreableID, payload.ScoreID)
}
