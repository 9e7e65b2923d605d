package eventbus

import (
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// PublishWithMappackScope publishes msg on {baseTopic}.{code}, so that
// consumers can follow a single mappack or all of them with a wildcard.
//
// Example:
//   - baseTopic: "score.accepted.v1"
//   - code: "CTP"
//   - result: "score.accepted.v1.ctp"
func PublishWithMappackScope(bus message.Publisher, baseTopic string, code string, msg *message.Message) error {
	if code == "" {
		return fmt.Errorf("mappack code cannot be empty for mappack-scoped publish")
	}
	return bus.Publish(FormatMappackScopedTopic(baseTopic, code), msg)
}

// FormatMappackScopedTopic formats a topic with the mappack suffix without publishing.
func FormatMappackScopedTopic(baseTopic string, code string) string {
	return fmt.Sprintf("%s.%s", baseTopic, strings.ToLower(code))
}
