package actor

import "errors"

var (
	// ErrNeverSeated indicates a student connection attempt that never
	// completed seat assignment.
	ErrNeverSeated = errors.New("student never completed seat assignment")

	// ErrLessonNotCompleted indicates a teacher run that closed before
	// invoking lesson end.
	ErrLessonNotCompleted = errors.New("teacher closed before lesson end")
)
