package types

import (
	"encoding/json"
)

// Namespace constants for the two logical channels multiplexed over one
// physical connection. A namespace is "joined" only after its Connect frame
// has been observed; events arriving before that must not be acted on.
const (
	NamespaceParticipant = "/participant"
	NamespaceTeacher     = "/teacher"
	NamespaceDefault     = "/"
)

// Role constants used in connect auth payloads and join_lesson events.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Event name constants defined exactly as the classroom service emits them.
const (
	EventJoinLesson       = "join_lesson"
	EventQuizCreated      = "quiz-created"
	EventQuizFinished     = "quiz-finished"
	EventQuizDisclosed    = "quiz-disclosed"
	EventQuizClosed       = "quiz-closed"
	EventStudentSubmitted = "student_submitted"
	EventStudentPoints    = "student_points"
	EventEndLesson        = "end_lesson"
)

// FrameType identifies one decoded unit of the wire protocol.
type FrameType int

const (
	FrameOpen FrameType = iota
	FramePing
	FramePong
	FrameConnect
	FrameEvent
)

func (t FrameType) String() string {
	switch t {
	case FrameOpen:
		return "open"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	case FrameConnect:
		return "connect"
	case FrameEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Frame is one decoded transport frame. Only the fields relevant to the
// frame's type are populated; frames are ephemeral and never persisted.
type Frame struct {
	Type      FrameType
	Namespace string                 // Connect and Event frames
	Event     string                 // Event frames only
	Handshake map[string]interface{} // Open frames only
	Payload   map[string]interface{} // Connect ack payload
	Data      json.RawMessage        // Event data, unparsed
}

// DisconnectCause classifies why a connection terminated. Every closed
// connection is attributable to exactly one cause.
type DisconnectCause int

const (
	CauseUnexpectedClose DisconnectCause = iota
	CauseLessonEnded
	CauseTimedOut
	CauseConnectionError
)

func (c DisconnectCause) String() string {
	switch c {
	case CauseLessonEnded:
		return "lesson_ended"
	case CauseTimedOut:
		return "timed_out"
	case CauseConnectionError:
		return "connection_error"
	default:
		return "unexpected_close"
	}
}

// RoomSession is created once per room before any actor starts. LessonID is
// immutable after creation; the session is shared read-only by every actor
// in the room.
type RoomSession struct {
	RoomID       string
	LessonID     string
	StudentCount int
}

// ActorIdentity identifies one simulated participant. StudentID and
// SocketToken are write-once, assigned by the seat-assignment operation.
type ActorIdentity struct {
	DeviceID    string
	Serial      int
	Role        string
	StudentID   string
	SocketToken string
}

// SeatAssignment is the result of the choose-seat operation.
type SeatAssignment struct {
	StudentID   string `json:"student_id"`
	SocketToken string `json:"socket_token"`
	SeatNumber  int    `json:"seat_number"`
}

// Quiz type constants matching the service's quiz taxonomy.
const (
	QuizTypeTrueFalse      = "TRUE_FALSE"
	QuizTypeSingleSelect   = "SINGLE_SELECT"
	QuizTypeMultipleSelect = "MULTIPLE_SELECT"
)

// QuizOption is one selectable option within a quiz.
type QuizOption struct {
	OptionID int    `json:"option_id"`
	Content  string `json:"content"`
	IsAnswer bool   `json:"is_answer,omitempty"`
}

// Quiz is one question within a batch.
type Quiz struct {
	QuizID     string       `json:"quiz_id"`
	Seq        int          `json:"seq"`
	QuizType   string       `json:"quiz_type"`
	Content    string       `json:"content"`
	OptionList []QuizOption `json:"option_list"`
}

// QuizContent is the fetched question set for one batch.
type QuizContent struct {
	Quizzes []Quiz `json:"quizzes"`
}

// QuizAnswer is one student's answer to one quiz.
type QuizAnswer struct {
	QuizID     string `json:"quiz_id"`
	AnswerData []int  `json:"answer_data"`
}

// StudentPoints is one student's points award in a batch grant.
type StudentPoints struct {
	StudentID string `json:"student_id"`
	Points    int    `json:"points"`
}

// QuizRound tracks one teacher-initiated batch through its lifecycle.
// BatchID must be distinct from the previous round's; duplicate
// notifications carrying an already-processed BatchID are no-ops.
type QuizRound struct {
	BatchID   string
	Seq       int
	Submitted int
}
