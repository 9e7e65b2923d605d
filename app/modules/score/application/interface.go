package scoreservice

import (
	"context"
	"net/http"

	"github.com/edelkas/inne-sub000/pkg/npp"
)

// Service defines the contract for score submission and the administrative
// score operations.
type Service interface {
	// Submit runs the submission state machine. Rejections and forwards are
	// outcomes, not errors; an error means the server failed.
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)

	// GetReplay answers a replay download.
	GetReplay(ctx context.Context, req ReplayRequest) (*ReplayResult, error)

	// Login forwards a login and records the player, falling back to a local
	// login when the upstream server rejects it.
	Login(ctx context.Context, req LoginRequest) ([]byte, error)

	// PatchScore rewrites the highscore of a stored run and re-ranks its board.
	PatchScore(ctx context.Context, req PatchRequest) (*PatchResult, error)

	// WipeScore removes a stored run and promotes the player's next best runs.
	WipeScore(ctx context.Context, scoreID int64) (*WipeResult, error)

	// SetBlacklisted flags or clears a player.
	SetBlacklisted(ctx context.Context, metanetID int64, blacklisted bool) error
}

// UpstreamRequest is the part of a client request needed to replay it
// against the official server.
type UpstreamRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Forwarder relays requests to the official server. A nil body with a nil
// error means the upstream answered with a failure status.
type Forwarder interface {
	Forward(ctx context.Context, req UpstreamRequest) ([]byte, error)
}

// SimResult is the outcome of simulating the demos of one run.
type SimResult struct {
	// Valid holds, per level, whether the demo completes the level.
	Valid []bool
	// Scores holds the precise highscore per level, in seconds.
	Scores []float64
	// Fractions holds the sub-frame completion point per level, in (0, 1].
	Fractions []float64
}

// Simulator replays demos on maps with the external simulator.
type Simulator interface {
	Run(ctx context.Context, maps [][]byte, demos [][]byte) (*SimResult, error)
}

// RefreshScheduler asks the vanilla collector to refresh a board that is not
// hosted by this server.
type RefreshScheduler interface {
	ScheduleVanillaRefresh(ctx context.Context, kind npp.Kind, id int64, metanetID int64) error
}
