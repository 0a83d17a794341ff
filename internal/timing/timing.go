// Package timing derives the room-wide delay plan from configuration and
// room size. The plan is computed once per room before any actor starts
// and shared read-only, so every actor in a room observes identical
// windows; per-actor recomputation would make answer-window races
// non-reproducible.
package timing

import "time"

// Defaults for the pieces of the plan that are fixed rather than derived.
const (
	// FirstQuizDelay is the shortened delay before the first quiz in
	// multi-round runs, where the full seating-time estimate would only
	// pad the run.
	FirstQuizDelay = 10 * time.Second

	// SettlePause separates the sequential finish/disclose/close calls on
	// one batch; the service models these as ordered state transitions and
	// rejects out-of-order calls.
	SettlePause = 2 * time.Second

	// seatTimeThreshold is the fixed bound for the seat-within-3s flag.
	SeatTimeThreshold = 3 * time.Second
)

// Config carries the inputs to the derived-delay formulas.
type Config struct {
	// QuizCreateDelayOverride and AnswerWaitOverride, when positive, are
	// taken verbatim instead of the derived values.
	QuizCreateDelayOverride time.Duration
	AnswerWaitOverride      time.Duration

	// TeacherHeadStart is the delay students wait before starting, and a
	// term of the quiz-creation delay.
	TeacherHeadStart time.Duration

	// StudentSessionTime is the nominal per-student session length.
	StudentSessionTime time.Duration
}

// Plan is the immutable per-room timing plan.
type Plan struct {
	QuizCreateDelay time.Duration
	AnswerWait      time.Duration
	StudentTimeout  time.Duration
}

// NewPlan computes the plan for a room with the given student count.
// Deterministic: identical inputs always produce identical plans.
func NewPlan(cfg Config, studentsPerRoom int) Plan {
	// Every ten students adds five seconds of queueing on the
	// seat-assignment path.
	perTen := time.Duration(studentsPerRoom/10) * 5 * time.Second

	quizCreate := cfg.QuizCreateDelayOverride
	if quizCreate <= 0 {
		// The fixed 45s term covers the students' own staggered join delay
		// plus seating time.
		quizCreate = cfg.TeacherHeadStart + 45*time.Second + perTen
	}

	answerWait := cfg.AnswerWaitOverride
	if answerWait <= 0 {
		answerWait = 30*time.Second + perTen
		if alt := cfg.StudentSessionTime - 10*time.Second; alt > answerWait {
			answerWait = alt
		}
	}

	return Plan{
		QuizCreateDelay: quizCreate,
		AnswerWait:      answerWait,
		// Strictly after the teacher's scheduled quiz-close, so a student
		// never gives up while a quiz could still plausibly arrive.
		StudentTimeout: quizCreate + answerWait + 30*time.Second,
	}
}

// CloseDelay returns how long the teacher waits between creating a batch
// and starting its close sequence. Multi-round runs pace the close off the
// round interval instead of the full answer window.
func CloseDelay(quizCount int, answerWait, quizInterval time.Duration) time.Duration {
	if quizCount <= 1 {
		return answerWait
	}
	d := quizInterval * 7 / 10
	if d < 90*time.Second {
		d = 90 * time.Second
	}
	return d
}
