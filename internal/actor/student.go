package actor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"classload/internal/codec"
	"classload/internal/metrics"
	"classload/internal/restapi"
	"classload/internal/retry"
	"classload/internal/socket"
	"classload/internal/timing"
	"classload/pkg/types"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Default human-like think interval before fetching a received quiz.
const (
	defaultThinkMin = 500 * time.Millisecond
	defaultThinkMax = 1500 * time.Millisecond
)

// StudentConfig configures one simulated learner.
type StudentConfig struct {
	SocketURL string
	Serial    int
	Session   types.RoomSession
	Plan      timing.Plan

	// Retry wraps the whole connection lifecycle when enabled; there is
	// no retry within a connection.
	Retry retry.Config

	ThinkMin time.Duration
	ThinkMax time.Duration
}

// Student is the state machine for one simulated learner:
// Connecting → NamespaceJoining → Seating → Joined, then Answering and
// AwaitingQuiz per quiz round, then AwaitingEnd → Closed. The actor
// exclusively owns its
// connection, identity, and state; handlers run serialized on the
// connection's dispatch goroutine.
type Student struct {
	cfg      StudentConfig
	api      restapi.Client
	rec      metrics.Recorder
	log      *logrus.Entry
	identity types.ActorIdentity
	rng      *rand.Rand

	// Per-connection state, reset on every attempt.
	ctx       context.Context
	conn      *socket.Conn
	stateMu   sync.Mutex
	state     State
	nsJoined  bool
	sessionID string
	cause     causeTracker
	start     time.Time
	seated    bool

	// lastBatchID guards against duplicate quiz-created notifications;
	// it survives reconnects so a replayed round is never answered twice.
	lastBatchID string
	rounds      int
}

// NewStudent creates a student actor with a fresh random device identity.
func NewStudent(cfg StudentConfig, api restapi.Client, rec metrics.Recorder, log *logrus.Entry) *Student {
	if cfg.ThinkMin <= 0 {
		cfg.ThinkMin = defaultThinkMin
	}
	if cfg.ThinkMax < cfg.ThinkMin {
		cfg.ThinkMax = cfg.ThinkMin + defaultThinkMax - defaultThinkMin
	}
	if rec == nil {
		rec = metrics.Discard{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Student{
		cfg: cfg,
		api: api,
		rec: rec,
		log: log.WithFields(logrus.Fields{
			"role":   types.RoleStudent,
			"serial": cfg.Serial,
			"lesson": cfg.Session.LessonID,
		}),
		identity: types.ActorIdentity{
			DeviceID: uuid.NewString(),
			Serial:   cfg.Serial,
			Role:     types.RoleStudent,
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(cfg.Serial)<<16)),
	}
}

// Identity returns the actor's identity, including the student id and
// token once seat assignment has succeeded.
func (s *Student) Identity() types.ActorIdentity {
	return s.identity
}

// State returns the current lifecycle state.
func (s *Student) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Student) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Run drives the student through a full lesson. With retry enabled the
// whole connection lifecycle is re-attempted with backoff; overall
// success requires some attempt to complete seat assignment.
func (s *Student) Run(ctx context.Context) error {
	if s.cfg.Retry.Enabled {
		return retry.Run(ctx, s.cfg.Retry, s.rec, func(ctx context.Context, attempt int) error {
			if attempt > 1 {
				s.log.WithField("attempt", attempt).Info("retrying connection")
			}
			return s.runOnce(ctx)
		})
	}
	return s.runOnce(ctx)
}

// runOnce runs one full connection lifecycle.
func (s *Student) runOnce(ctx context.Context) error {
	s.ctx = ctx
	s.setState(StateConnecting)
	s.nsJoined = false
	s.sessionID = ""
	s.seated = false
	s.cause.reset()
	s.start = time.Now()

	dialURL, err := socketURL(s.cfg.SocketURL, types.RoleStudent)
	if err != nil {
		return err
	}

	conn, err := socket.Dial(ctx, dialURL, nil, socket.Callbacks{
		OnOpen:  s.onOpen,
		OnFrame: s.onFrame,
		OnError: s.onError,
		OnClose: s.onClose,
	}, s.log)
	if err != nil {
		s.rec.Record(MetricStudentConnected, 0)
		s.log.WithError(err).Warn("connection failed")
		return err
	}
	s.conn = conn

	// Local deadline: fires strictly after the teacher's scheduled quiz
	// close, so the student never gives up while a quiz could still
	// plausibly arrive.
	conn.ScheduleAfter(s.cfg.Plan.StudentTimeout, func() {
		s.cause.timedOut = true
		_ = s.conn.Close()
	})

	if err := conn.Wait(ctx); err != nil {
		_ = conn.Close()
		_ = conn.Wait(context.Background())
		return err
	}

	if !s.seated {
		return ErrNeverSeated
	}
	return nil
}

func (s *Student) onOpen() {
	s.rec.Record(MetricStudentConnected, 1)
	s.setState(StateNamespaceJoining)
}

func (s *Student) onFrame(raw string) {
	frame, ok := codec.Decode(raw)
	if !ok {
		s.rec.Record(MetricFrameDiscarded, 1)
		s.log.WithField("raw", raw).Debug("discarding unrecognized frame")
		return
	}

	switch frame.Type {
	case types.FramePing:
		_ = s.conn.Send(codec.EncodePong())
	case types.FrameOpen:
		s.joinNamespace()
	case types.FrameConnect:
		if frame.Namespace == types.NamespaceParticipant && !s.nsJoined {
			s.nsJoined = true
			if sid, ok := frame.Payload["sid"].(string); ok {
				s.sessionID = sid
			}
			s.chooseSeat()
		}
	case types.FrameEvent:
		// Events for a namespace must not be acted on before its join.
		if !s.nsJoined || frame.Namespace != types.NamespaceParticipant {
			return
		}
		s.onEvent(frame)
	}
}

// joinNamespace answers the transport handshake with the participant
// namespace connect. The student namespace requires no credential.
func (s *Student) joinNamespace() {
	raw, err := codec.EncodeConnect(types.NamespaceParticipant, map[string]interface{}{
		"role": types.RoleStudent,
	})
	if err != nil {
		s.log.WithError(err).Error("encoding namespace connect")
		return
	}
	if err := s.conn.Send(raw); err != nil {
		s.log.WithError(err).Debug("sending namespace connect")
	}
}

// chooseSeat invokes seat assignment and, on success, announces the
// student to the lesson. On failure the actor remains in Seating for this
// connection; retry happens only at the connection-attempt level.
func (s *Student) chooseSeat() {
	s.setState(StateSeating)

	seat, err := s.api.ChooseSeat(s.ctx, s.cfg.Session.LessonID, s.cfg.Serial, s.sessionID, s.identity.DeviceID)
	if err != nil {
		s.rec.Record(MetricStudentSeated, 0)
		s.log.WithError(err).Warn("seat assignment failed")
		return
	}

	elapsed := time.Since(s.start)
	s.rec.Record(MetricTimeToSeat, float64(elapsed.Milliseconds()))
	if elapsed <= timing.SeatTimeThreshold {
		s.rec.Record(MetricSeatWithin3s, 1)
	} else {
		s.rec.Record(MetricSeatWithin3s, 0)
	}

	s.identity.StudentID = seat.StudentID
	s.identity.SocketToken = seat.SocketToken
	s.seated = true
	s.rec.Record(MetricStudentSeated, 1)

	raw, err := codec.EncodeEvent(types.NamespaceParticipant, types.EventJoinLesson, map[string]interface{}{
		"lesson_id":    s.cfg.Session.LessonID,
		"user_id":      seat.StudentID,
		"role":         types.RoleStudent,
		"access_token": seat.SocketToken,
	})
	if err != nil {
		s.log.WithError(err).Error("encoding join_lesson")
		return
	}
	if err := s.conn.Send(raw); err != nil {
		s.log.WithError(err).Debug("sending join_lesson")
		return
	}

	s.setState(StateJoined)
	s.log.WithField("student_id", seat.StudentID).Info("seated and joined")
}

func (s *Student) onEvent(frame types.Frame) {
	switch frame.Event {
	case types.EventQuizCreated:
		s.onQuizCreated(frame.Data)
	case types.EventQuizFinished:
		s.rec.Record(MetricQuizFinishedSeen, 1)
	case types.EventQuizDisclosed:
		s.rec.Record(MetricQuizDisclosedSeen, 1)
	case types.EventQuizClosed:
		s.rec.Record(MetricQuizClosedSeen, 1)
	case types.EventStudentPoints:
		s.rec.Record(MetricPointsSeen, 1)
	case types.EventEndLesson:
		s.setState(StateAwaitingEnd)
		s.cause.lessonEnded = true
		_ = s.conn.Close()
	}
}

// onQuizCreated runs one fetch-and-submit cycle for a new batch.
// Duplicate notifications carrying an already-processed batch id are
// no-ops.
func (s *Student) onQuizCreated(data []byte) {
	var payload struct {
		BatchQuizzesID string `json:"batch_quizzes_id"`
	}
	if err := jsonAPI.Unmarshal(data, &payload); err != nil || payload.BatchQuizzesID == "" {
		s.rec.Record(MetricFrameDiscarded, 1)
		return
	}
	if !s.seated || payload.BatchQuizzesID == s.lastBatchID {
		return
	}

	s.lastBatchID = payload.BatchQuizzesID
	s.rounds++
	if s.rounds == 1 {
		s.rec.Record(MetricQuizReceived, float64(time.Since(s.start).Milliseconds()))
	}

	s.setState(StateAnswering)
	defer s.setState(StateAwaitingQuiz)

	// Human-like pause; suspends only this actor's connection.
	think := s.cfg.ThinkMin + time.Duration(s.rng.Int63n(int64(s.cfg.ThinkMax-s.cfg.ThinkMin)+1))
	time.Sleep(think)

	content, err := s.api.FetchQuiz(s.ctx, s.cfg.Session.LessonID, s.identity.StudentID)
	if err != nil {
		s.rec.Record(MetricAnswersSubmitted, 0)
		s.log.WithError(err).Warn("quiz fetch failed")
		return
	}

	answers := syntheticAnswers(content, s.rng)
	if err := s.api.SubmitAnswers(s.ctx, payload.BatchQuizzesID, s.identity.StudentID, answers); err != nil {
		s.rec.Record(MetricAnswersSubmitted, 0)
		s.log.WithError(err).Warn("answer submission failed")
		return
	}

	s.rec.Record(MetricAnswersSubmitted, 1)
	s.log.WithFields(logrus.Fields{
		"batch":   payload.BatchQuizzesID,
		"answers": len(answers),
	}).Info("answers submitted")
}

func (s *Student) onError(err error) {
	// Errors may fire multiple times per connection; classification is
	// finalized only by the close handler.
	s.cause.connError = true
	s.rec.Record(MetricSocketError, 1)
	s.log.WithError(err).Debug("transport error")
}

func (s *Student) onClose() {
	cause := s.cause.finalize()
	s.rec.Record(metricStudentDisconnectPrefix+cause.String(), 1)
	s.setState(StateClosed)
	s.log.WithField("cause", cause.String()).Info("disconnected")
}
