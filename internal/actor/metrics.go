package actor

// Metric names reported through the recorder. Every failure path
// increments a specific named metric so aggregate pass/fail thresholds
// are computable after the run.
const (
	MetricStudentConnected  = "student_connected"
	MetricTimeToSeat        = "time_to_seat"
	MetricSeatWithin3s      = "seat_within_3s"
	MetricStudentSeated     = "student_seated"
	MetricQuizReceived      = "quiz_received_latency"
	MetricAnswersSubmitted  = "answers_submitted"
	MetricFrameDiscarded    = "frame_discarded"
	MetricSocketError       = "socket_error"
	MetricQuizFinishedSeen  = "quiz_finished_seen"
	MetricQuizDisclosedSeen = "quiz_disclosed_seen"
	MetricQuizClosedSeen    = "quiz_closed_seen"
	MetricPointsSeen        = "student_points_seen"

	MetricTeacherConnected = "teacher_connected"
	MetricQuizCreated      = "quiz_created"
	MetricQuizSubmissions  = "quiz_submissions"
	MetricSubmissionSeen   = "student_submitted_seen"
	MetricPointsAwarded    = "points_awarded"
	MetricLessonCompleted  = "lesson_completed"

	// Prefixes completed with a DisconnectCause string.
	metricStudentDisconnectPrefix = "student_disconnect_"
	metricTeacherDisconnectPrefix = "teacher_disconnect_"
)
