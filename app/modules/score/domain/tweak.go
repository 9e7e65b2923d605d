package scoredomain

import (
	"github.com/edelkas/inne-sub000/pkg/npp"
)

// The game reports the score of a level played inside an episode relative to
// the episode start. TweakState carries, per player and episode, the frames
// accumulated by the previous levels so that each level score can be restored.
type TweakState struct {
	// Index is the position within the episode of the next expected level.
	Index int
	// Tweak is the frame offset to add to the next submission.
	Tweak int
}

// TweakAction tells the caller what to do with the stored state.
type TweakAction int

const (
	TweakKeep TweakAction = iota
	TweakSave
	TweakDelete
)

// TweakResult is the outcome of applying a tweak to a submission.
type TweakResult struct {
	Score  int
	State  TweakState
	Action TweakAction
}

// ApplyTweak corrects a level score submitted during an episode run. state is
// nil when nothing is stored for the player and episode. A level submitted out
// of order yields npp.ErrState and the caller keeps the original score.
func ApplyTweak(state *TweakState, header DemoHeader, levelInnerID int, score int) (TweakResult, error) {
	if header.Type != HeaderEpisode {
		return TweakResult{Score: score, Action: TweakKeep}, nil
	}

	index := levelInnerID % npp.Episode.Size()
	var tw TweakState
	switch {
	case index == 0:
		tw = TweakState{}
	case state == nil:
		return TweakResult{Score: score}, npp.Errorf("score.ApplyTweak", npp.ErrState, "no tweak stored before level %d of the episode", index)
	case state.Index != index:
		return TweakResult{Score: score}, npp.Errorf("score.ApplyTweak", npp.ErrState, "expected level %d of the episode, got %d", state.Index, index)
	default:
		tw = *state
	}

	frames := int(header.Framecount) - 1
	if int(header.LevelID) == levelInnerID {
		score += tw.Tweak
		tw.Tweak += frames
	} else {
		tw.Tweak = frames
	}

	if index < npp.Episode.Size()-1 {
		tw.Index = index + 1
		return TweakResult{Score: score, State: tw, Action: TweakSave}, nil
	}
	return TweakResult{Score: score, State: tw, Action: TweakDelete}, nil
}
