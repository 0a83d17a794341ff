package actor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"classload/internal/codec"
	"classload/internal/metrics"
	"classload/internal/restapi"
	"classload/internal/socket"
	"classload/internal/timing"
	"classload/pkg/types"
)

// TeacherAuth carries the instructor namespace credential.
type TeacherAuth struct {
	AccessToken string
	OrgID       string
	Name        string
	Region      string
}

// TeacherConfig configures one simulated instructor.
type TeacherConfig struct {
	SocketURL string
	Session   types.RoomSession
	Plan      timing.Plan
	Auth      TeacherAuth

	// QuizCount is the number of quiz rounds to run; QuizInterval spaces
	// the rounds when there is more than one.
	QuizCount    int
	QuizInterval time.Duration
}

// Teacher is the state machine for one simulated instructor. It drives
// the lesson end to end: join the instructor namespace, announce itself,
// run the quiz rounds on timers, and end the lesson. All handlers run
// serialized on the connection's dispatch goroutine; there is exactly
// one teacher per lesson, so the actor does not retry.
type Teacher struct {
	cfg    TeacherConfig
	api    restapi.Client
	rec    metrics.Recorder
	log    *logrus.Entry
	userID string
	rng    *rand.Rand

	ctx       context.Context
	conn      *socket.Conn
	stateMu   sync.Mutex
	state     State
	nsJoined  bool
	cause     causeTracker
	completed bool

	// round and roundStudents belong to the currently open batch;
	// roundStudents feeds the points grant after the batch closes.
	round         types.QuizRound
	roundStudents map[string]struct{}
}

// NewTeacher creates a teacher actor with a fresh user identity.
func NewTeacher(cfg TeacherConfig, api restapi.Client, rec metrics.Recorder, log *logrus.Entry) *Teacher {
	if cfg.QuizCount <= 0 {
		cfg.QuizCount = 1
	}
	if rec == nil {
		rec = metrics.Discard{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Teacher{
		cfg: cfg,
		api: api,
		rec: rec,
		log: log.WithFields(logrus.Fields{
			"role":   types.RoleTeacher,
			"lesson": cfg.Session.LessonID,
		}),
		userID: uuid.NewString(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the current lifecycle state.
func (t *Teacher) State() State {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

func (t *Teacher) setState(s State) {
	t.stateMu.Lock()
	t.state = s
	t.stateMu.Unlock()
}

// Completed reports whether the lesson reached a clean end.
func (t *Teacher) Completed() bool {
	return t.completed
}

// Run drives the teacher through the whole lesson and returns when the
// connection has closed.
func (t *Teacher) Run(ctx context.Context) error {
	t.ctx = ctx
	t.setState(StateConnecting)
	t.cause.reset()

	dialURL, err := socketURL(t.cfg.SocketURL, types.RoleTeacher)
	if err != nil {
		return err
	}

	conn, err := socket.Dial(ctx, dialURL, nil, socket.Callbacks{
		OnOpen:  t.onOpen,
		OnFrame: t.onFrame,
		OnError: t.onError,
		OnClose: t.onClose,
	}, t.log)
	if err != nil {
		t.rec.Record(MetricTeacherConnected, 0)
		t.log.WithError(err).Warn("connection failed")
		return err
	}
	t.conn = conn

	// Safety deadline in case the service stops emitting: the round
	// timers would otherwise be the only way out.
	conn.ScheduleAfter(t.cfg.Plan.StudentTimeout+time.Duration(t.cfg.QuizCount)*t.cfg.QuizInterval, func() {
		t.cause.timedOut = true
		_ = t.conn.Close()
	})

	if err := conn.Wait(ctx); err != nil {
		_ = conn.Close()
		_ = conn.Wait(context.Background())
		return err
	}

	if !t.completed {
		return ErrLessonNotCompleted
	}
	return nil
}

func (t *Teacher) onOpen() {
	t.rec.Record(MetricTeacherConnected, 1)
	t.setState(StateNamespaceJoining)
}

func (t *Teacher) onFrame(raw string) {
	frame, ok := codec.Decode(raw)
	if !ok {
		t.rec.Record(MetricFrameDiscarded, 1)
		t.log.WithField("raw", raw).Debug("discarding unrecognized frame")
		return
	}

	switch frame.Type {
	case types.FramePing:
		_ = t.conn.Send(codec.EncodePong())
	case types.FrameOpen:
		t.joinNamespace()
	case types.FrameConnect:
		if frame.Namespace == types.NamespaceTeacher && !t.nsJoined {
			t.nsJoined = true
			t.joinLesson()
		}
	case types.FrameEvent:
		if !t.nsJoined || frame.Namespace != types.NamespaceTeacher {
			return
		}
		t.onEvent(frame)
	}
}

// joinNamespace answers the transport handshake with the instructor
// namespace connect. Unlike the participant namespace this one carries
// the full credential.
func (t *Teacher) joinNamespace() {
	raw, err := codec.EncodeConnect(types.NamespaceTeacher, map[string]interface{}{
		"role":         types.RoleTeacher,
		"access_token": t.cfg.Auth.AccessToken,
		"org_id":       t.cfg.Auth.OrgID,
		"name":         t.cfg.Auth.Name,
		"region":       t.cfg.Auth.Region,
	})
	if err != nil {
		t.log.WithError(err).Error("encoding namespace connect")
		return
	}
	if err := t.conn.Send(raw); err != nil {
		t.log.WithError(err).Debug("sending namespace connect")
	}
}

// joinLesson announces the instructor to the lesson and schedules the
// first quiz round. Multi-round runs start sooner: the full derived
// delay models one big seating wave, which only the first single round
// needs.
func (t *Teacher) joinLesson() {
	raw, err := codec.EncodeEvent(types.NamespaceTeacher, types.EventJoinLesson, map[string]interface{}{
		"lesson_id":    t.cfg.Session.LessonID,
		"user_id":      t.userID,
		"role":         types.RoleTeacher,
		"access_token": t.cfg.Auth.AccessToken,
	})
	if err != nil {
		t.log.WithError(err).Error("encoding join_lesson")
		return
	}
	if err := t.conn.Send(raw); err != nil {
		t.log.WithError(err).Debug("sending join_lesson")
		return
	}

	t.setState(StateIdle)

	delay := t.cfg.Plan.QuizCreateDelay
	if t.cfg.QuizCount > 1 {
		delay = timing.FirstQuizDelay
	}
	t.log.WithField("delay", delay).Info("joined lesson, scheduling first quiz")
	t.conn.ScheduleAfter(delay, func() { t.startRound(1) })
}

// startRound creates quiz batch seq and schedules its close sequence. A
// failed creation skips straight to ending the lesson so students are
// released instead of waiting out their timeout.
func (t *Teacher) startRound(seq int) {
	t.setState(StateQuizCreating)

	batchID, err := t.api.CreateQuiz(t.ctx, t.cfg.Session.LessonID)
	if err != nil || batchID == "" {
		t.rec.Record(MetricQuizCreated, 0)
		t.log.WithError(err).Warn("quiz creation failed")
		t.finishLesson()
		return
	}

	t.rec.Record(MetricQuizCreated, 1)
	t.round = types.QuizRound{BatchID: batchID, Seq: seq}
	t.roundStudents = make(map[string]struct{})
	t.setState(StateQuizOpen)
	t.log.WithFields(logrus.Fields{"batch": batchID, "round": seq}).Info("quiz created")

	wait := timing.CloseDelay(t.cfg.QuizCount, t.cfg.Plan.AnswerWait, t.cfg.QuizInterval)
	t.conn.ScheduleAfter(wait, func() { t.closeRound(seq) })
}

// closeRound walks the batch through finish, disclose, and close, each
// step separated by the settle pause, then moves to the next round or
// ends the lesson.
func (t *Teacher) closeRound(seq int) {
	if t.round.Seq != seq {
		return
	}
	t.setState(StateQuizClosing)
	batchID := t.round.BatchID

	if err := t.api.FinishQuiz(t.ctx, t.cfg.Session.LessonID, batchID); err != nil {
		t.log.WithError(err).Warn("quiz finish failed")
	}
	t.conn.ScheduleAfter(timing.SettlePause, func() {
		if err := t.api.DiscloseQuiz(t.ctx, t.cfg.Session.LessonID, batchID); err != nil {
			t.log.WithError(err).Warn("quiz disclose failed")
		}
		t.conn.ScheduleAfter(timing.SettlePause, func() {
			if err := t.api.CloseQuiz(t.ctx, t.cfg.Session.LessonID, batchID); err != nil {
				t.log.WithError(err).Warn("quiz close failed")
			}
			t.rec.Record(MetricQuizSubmissions, float64(t.round.Submitted))
			t.log.WithFields(logrus.Fields{
				"batch":       batchID,
				"round":       seq,
				"submissions": t.round.Submitted,
			}).Info("quiz round closed")
			t.awardPoints()

			if seq < t.cfg.QuizCount {
				// Pace the next round relative to this one's creation.
				elapsed := timing.CloseDelay(t.cfg.QuizCount, t.cfg.Plan.AnswerWait, t.cfg.QuizInterval) + 2*timing.SettlePause
				next := t.cfg.QuizInterval - elapsed
				if next < timing.SettlePause {
					next = timing.SettlePause
				}
				t.conn.ScheduleAfter(next, func() { t.startRound(seq + 1) })
				return
			}
			t.finishLesson()
		})
	})
}

// awardPoints grants a random 10-20 points to every student who
// submitted in the closed round. The service fans the grant out as
// student_points events to the participants.
func (t *Teacher) awardPoints() {
	if len(t.roundStudents) == 0 {
		return
	}

	students := make([]types.StudentPoints, 0, len(t.roundStudents))
	for id := range t.roundStudents {
		students = append(students, types.StudentPoints{
			StudentID: id,
			Points:    10 + t.rng.Intn(11),
		})
	}

	if err := t.api.AddStudentPoints(t.ctx, t.cfg.Session.LessonID, students); err != nil {
		t.rec.Record(MetricPointsAwarded, 0)
		t.log.WithError(err).Warn("points grant failed")
		return
	}
	t.rec.Record(MetricPointsAwarded, float64(len(students)))
	t.log.WithField("students", len(students)).Info("points awarded")
}

// finishLesson ends the lesson over REST and closes the connection. The
// service broadcasts end_lesson to the participants on our behalf.
func (t *Teacher) finishLesson() {
	t.setState(StateEnding)

	if err := t.api.EndLesson(t.ctx, t.cfg.Session.LessonID); err != nil {
		t.rec.Record(MetricLessonCompleted, 0)
		t.log.WithError(err).Warn("lesson end failed")
		_ = t.conn.Close()
		return
	}

	t.completed = true
	t.cause.lessonEnded = true
	t.rec.Record(MetricLessonCompleted, 1)
	t.log.Info("lesson ended")
	_ = t.conn.Close()
}

func (t *Teacher) onEvent(frame types.Frame) {
	switch frame.Event {
	case types.EventStudentSubmitted:
		t.rec.Record(MetricSubmissionSeen, 1)
		t.onStudentSubmitted(frame.Data)
	case types.EventEndLesson:
		// Ended from outside the harness; still a clean end.
		t.cause.lessonEnded = true
		_ = t.conn.Close()
	}
}

// onStudentSubmitted counts submissions against the open round and
// remembers the submitting student for the points grant. A submission
// naming a stale batch id is ignored rather than miscounted.
func (t *Teacher) onStudentSubmitted(data []byte) {
	var payload struct {
		BatchQuizzesID string `json:"batch_quizzes_id"`
		StudentID      string `json:"student_id"`
	}
	if err := jsonAPI.Unmarshal(data, &payload); err != nil {
		return
	}
	if payload.BatchQuizzesID != "" && payload.BatchQuizzesID != t.round.BatchID {
		return
	}
	t.round.Submitted++
	if payload.StudentID != "" {
		if t.roundStudents == nil {
			t.roundStudents = make(map[string]struct{})
		}
		t.roundStudents[payload.StudentID] = struct{}{}
	}
}

func (t *Teacher) onError(err error) {
	t.cause.connError = true
	t.rec.Record(MetricSocketError, 1)
	t.log.WithError(err).Debug("transport error")
}

func (t *Teacher) onClose() {
	cause := t.cause.finalize()
	t.rec.Record(metricTeacherDisconnectPrefix+cause.String(), 1)
	t.setState(StateClosed)
	t.log.WithField("cause", cause.String()).Info("disconnected")
}
