// Package actor implements the two cooperating state machines that drive
// a simulated lesson: one Teacher and many Students per room, each owning
// one event-stream connection. Handlers run as serialized transitions over
// an explicit per-actor state struct; cross-actor visibility exists only
// through the metrics sink and the backing service.
package actor

// State is a position in an actor's lifecycle. Student and teacher share
// the connection-phase states and diverge after the namespace join.
type State int

const (
	StateConnecting State = iota
	StateNamespaceJoining

	// Student states.
	StateSeating
	StateJoined
	StateAwaitingQuiz
	StateAnswering
	StateAwaitingEnd

	// Teacher states.
	StateIdle
	StateQuizCreating
	StateQuizOpen
	StateQuizClosing
	StateEnding

	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNamespaceJoining:
		return "namespace_joining"
	case StateSeating:
		return "seating"
	case StateJoined:
		return "joined"
	case StateAwaitingQuiz:
		return "awaiting_quiz"
	case StateAnswering:
		return "answering"
	case StateAwaitingEnd:
		return "awaiting_end"
	case StateIdle:
		return "idle"
	case StateQuizCreating:
		return "quiz_creating"
	case StateQuizOpen:
		return "quiz_open"
	case StateQuizClosing:
		return "quiz_closing"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
