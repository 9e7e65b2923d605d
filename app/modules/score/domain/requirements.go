package scoredomain

import (
	"bytes"
	"strings"

	"github.com/edelkas/inne-sub000/pkg/npp"
)

// requirement is an extra rule some mappacks impose on their runs.
type requirement func(demos [][]byte) error

var requirements = map[string]requirement{
	// Dual: both ninjas must play identical inputs.
	"dua": func(demos [][]byte) error {
		for i, d := range demos {
			half := len(d) / 2
			if len(d)%2 != 0 || !bytes.Equal(d[:half], d[half:]) {
				return npp.Errorf("score.CheckRequirements", npp.ErrIntegrity, "demo %d does not mirror both ninjas", i)
			}
		}
		return nil
	},
}

// CheckRequirements applies the rule of a mappack, if it has one.
func CheckRequirements(code string, demos [][]byte) error {
	rule, ok := requirements[strings.ToLower(code)]
	if !ok {
		return nil
	}
	return rule(demos)
}
