// Package room assigns actors to rooms and runs each room's lesson end
// to end: synchronous setup over REST, then one teacher and N students
// as concurrent actors sharing the room's session and timing plan.
package room

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"classload/internal/actor"
	"classload/internal/metrics"
	"classload/internal/restapi"
	"classload/internal/retry"
	"classload/internal/timing"
	"classload/pkg/types"
)

// Assignment places one global actor index into a room. Position 0 is
// reserved for the teacher; students take positions 1..ActorsPerRoom-1.
type Assignment struct {
	RoomIndex int
	Position  int
}

// IsTeacher reports whether this assignment is the room's instructor.
func (a Assignment) IsTeacher() bool {
	return a.Position == 0
}

// Partition maps a 1-based global actor index onto its room assignment.
// The partition is deterministic so every worker computes the same
// placement without coordination.
func Partition(actorIndex, actorsPerRoom int) Assignment {
	return Assignment{
		RoomIndex: (actorIndex - 1) / actorsPerRoom,
		Position:  (actorIndex - 1) % actorsPerRoom,
	}
}

// Config drives one orchestrator instance.
type Config struct {
	SocketURL       string
	StudentsPerRoom int

	Timing       timing.Config
	Retry        retry.Config
	TeacherAuth  actor.TeacherAuth
	QuizCount    int
	QuizInterval time.Duration

	// StartJitterMax bounds the random per-student stagger added on top
	// of the teacher head start, spreading the seat-assignment herd.
	StartJitterMax time.Duration
}

// Result summarizes one room's run for teardown reporting.
type Result struct {
	Session        types.RoomSession
	TeacherOK      bool
	StudentsOK     int
	StudentsFailed int
	Duration       time.Duration
}

// Orchestrator sets up rooms and runs their actors.
type Orchestrator struct {
	cfg Config
	api restapi.Client
	rec metrics.Recorder
	log *logrus.Entry
	rng *rand.Rand
	mu  sync.Mutex
}

// NewOrchestrator creates an orchestrator over the given REST client.
func NewOrchestrator(cfg Config, api restapi.Client, rec metrics.Recorder, log *logrus.Entry) *Orchestrator {
	if cfg.StudentsPerRoom <= 0 {
		cfg.StudentsPerRoom = 1
	}
	if cfg.QuizCount <= 0 {
		cfg.QuizCount = 1
	}
	if cfg.StartJitterMax <= 0 {
		cfg.StartJitterMax = 3 * time.Second
	}
	if rec == nil {
		rec = metrics.Discard{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		cfg: cfg,
		api: api,
		rec: rec,
		log: log,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetupRoom synchronously creates the room and its lesson and starts the
// lesson. A failure here aborts the whole room: no actor can make
// progress without a valid lesson id.
func (o *Orchestrator) SetupRoom(ctx context.Context, roomIndex int) (types.RoomSession, error) {
	roomID, err := o.api.CreateRoom(ctx, roomIndex)
	if err != nil {
		return types.RoomSession{}, fmt.Errorf("room %d setup: %w", roomIndex, err)
	}

	lessonID, err := o.api.CreateLesson(ctx, roomID)
	if err != nil {
		return types.RoomSession{}, fmt.Errorf("room %d setup: %w", roomIndex, err)
	}

	if err := o.api.StartLesson(ctx, lessonID); err != nil {
		return types.RoomSession{}, fmt.Errorf("room %d setup: %w", roomIndex, err)
	}

	o.log.WithFields(logrus.Fields{
		"room_index": roomIndex,
		"room_id":    roomID,
		"lesson_id":  lessonID,
	}).Info("room ready")

	return types.RoomSession{
		RoomID:       roomID,
		LessonID:     lessonID,
		StudentCount: o.cfg.StudentsPerRoom,
	}, nil
}

// RunRoom sets up one room and runs its teacher and students to
// completion. The timing plan is computed once and shared read-only so
// every actor in the room observes identical windows.
func (o *Orchestrator) RunRoom(ctx context.Context, roomIndex int) (Result, error) {
	start := time.Now()

	session, err := o.SetupRoom(ctx, roomIndex)
	if err != nil {
		return Result{}, err
	}

	plan := timing.NewPlan(o.cfg.Timing, o.cfg.StudentsPerRoom)
	result := Result{Session: session}

	var wg sync.WaitGroup
	var resMu sync.Mutex

	// The room's actors occupy one contiguous block of global indices;
	// the partition decides which of them teaches.
	actorsPerRoom := o.cfg.StudentsPerRoom + 1
	for pos := 0; pos < actorsPerRoom; pos++ {
		assign := Partition(roomIndex*actorsPerRoom+pos+1, actorsPerRoom)

		wg.Add(1)
		if assign.IsTeacher() {
			go func() {
				defer wg.Done()
				teacher := actor.NewTeacher(actor.TeacherConfig{
					SocketURL:    o.cfg.SocketURL,
					Session:      session,
					Plan:         plan,
					Auth:         o.cfg.TeacherAuth,
					QuizCount:    o.cfg.QuizCount,
					QuizInterval: o.cfg.QuizInterval,
				}, o.api, o.rec, o.log)

				err := teacher.Run(ctx)
				resMu.Lock()
				result.TeacherOK = err == nil
				resMu.Unlock()
				if err != nil {
					o.log.WithError(err).WithField("room_id", session.RoomID).Warn("teacher run failed")
				}
			}()
			continue
		}

		go func(serial int) {
			defer wg.Done()

			// Students hold back behind the teacher plus a bounded jitter
			// so the seat endpoint is not hit by the whole room at t=0.
			delay := o.cfg.Timing.TeacherHeadStart + o.jitter()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				resMu.Lock()
				result.StudentsFailed++
				resMu.Unlock()
				return
			}

			student := actor.NewStudent(actor.StudentConfig{
				SocketURL: o.cfg.SocketURL,
				Serial:    serial,
				Session:   session,
				Plan:      plan,
				Retry:     o.cfg.Retry,
			}, o.api, o.rec, o.log)

			err := student.Run(ctx)
			resMu.Lock()
			if err == nil {
				result.StudentsOK++
			} else {
				result.StudentsFailed++
			}
			resMu.Unlock()
		}(assign.Position)
	}

	wg.Wait()
	result.Duration = time.Since(start)

	o.log.WithFields(logrus.Fields{
		"room_id":         session.RoomID,
		"teacher_ok":      result.TeacherOK,
		"students_ok":     result.StudentsOK,
		"students_failed": result.StudentsFailed,
		"duration":        result.Duration,
	}).Info("room finished")

	return result, nil
}

func (o *Orchestrator) jitter() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return time.Duration(o.rng.Int63n(int64(o.cfg.StartJitterMax)))
}
