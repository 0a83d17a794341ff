package actor

import "classload/pkg/types"

// causeTracker accumulates the flags that classify a connection's close.
// Error notifications may fire multiple times per connection; only the
// close handler finalizes the classification, and exactly one cause is
// ever reported.
type causeTracker struct {
	lessonEnded bool
	timedOut    bool
	connError   bool
}

func (c *causeTracker) reset() {
	*c = causeTracker{}
}

// finalize resolves the flags to a single cause. UnexpectedClose is the
// default only when none of the other three flags were set before the
// close event fired.
func (c *causeTracker) finalize() types.DisconnectCause {
	switch {
	case c.lessonEnded:
		return types.CauseLessonEnded
	case c.timedOut:
		return types.CauseTimedOut
	case c.connError:
		return types.CauseConnectionError
	default:
		return types.CauseUnexpectedClose
	}
}
