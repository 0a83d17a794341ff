package actor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"classload/pkg/types"
)

// classroomServer fakes the service's socket endpoint: it answers the
// transport handshake, acknowledges namespace connects, records inbound
// frames, and can push events to the connected actor.
type classroomServer struct {
	*httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []string
}

func newClassroomServer(t *testing.T) *classroomServer {
	upgrader := websocket.Upgrader{}
	cs := &classroomServer{}

	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cs.mu.Lock()
		cs.conns = append(cs.conns, ws)
		cs.mu.Unlock()

		_ = ws.WriteMessage(websocket.TextMessage,
			[]byte(`0{"sid":"transport-sid","pingInterval":25000,"pingTimeout":20000}`))

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			raw := string(data)
			cs.mu.Lock()
			cs.received = append(cs.received, raw)
			cs.mu.Unlock()

			for _, ns := range []string{types.NamespaceParticipant, types.NamespaceTeacher} {
				if strings.HasPrefix(raw, "40"+ns+",") {
					ack := fmt.Sprintf(`40%s,{"sid":"%s-sid"}`, ns, strings.TrimPrefix(ns, "/"))
					_ = ws.WriteMessage(websocket.TextMessage, []byte(ack))
				}
			}
		}
	}))

	t.Cleanup(func() {
		cs.mu.Lock()
		for _, ws := range cs.conns {
			_ = ws.Close()
		}
		cs.mu.Unlock()
		cs.Close()
	})

	return cs
}

func (cs *classroomServer) push(t *testing.T, raw string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	require.NotEmpty(t, cs.conns, "no actor connected")
	require.NoError(t, cs.conns[len(cs.conns)-1].WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (cs *classroomServer) dropConn(t *testing.T) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	require.NotEmpty(t, cs.conns, "no actor connected")
	require.NoError(t, cs.conns[len(cs.conns)-1].Close())
}

func (cs *classroomServer) inbound() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]string, len(cs.received))
	copy(out, cs.received)
	return out
}

func (cs *classroomServer) sawFrameContaining(substr string) bool {
	for _, raw := range cs.inbound() {
		if strings.Contains(raw, substr) {
			return true
		}
	}
	return false
}

func (cs *classroomServer) sawFrame(exact string) bool {
	for _, raw := range cs.inbound() {
		if raw == exact {
			return true
		}
	}
	return false
}

// fakeAPI implements restapi.Client with overridable behaviors and a
// call log.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	chooseSeat    func(serial int) (*types.SeatAssignment, error)
	fetchQuiz     func() (*types.QuizContent, error)
	submitAnswers func(batchID, studentID string, answers []types.QuizAnswer) error
	createQuiz    func() (string, error)
	addPoints     func(students []types.StudentPoints) error
	endLesson     func() error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeAPI) CreateRoom(context.Context, int) (string, error) {
	f.record("create_room")
	return "room-1", nil
}

func (f *fakeAPI) CreateLesson(context.Context, string) (string, error) {
	f.record("create_lesson")
	return "lesson-1", nil
}

func (f *fakeAPI) StartLesson(context.Context, string) error {
	f.record("start_lesson")
	return nil
}

func (f *fakeAPI) EndLesson(context.Context, string) error {
	f.record("end_lesson")
	if f.endLesson != nil {
		return f.endLesson()
	}
	return nil
}

func (f *fakeAPI) ChooseSeat(_ context.Context, _ string, serial int, _, _ string) (*types.SeatAssignment, error) {
	f.record("choose_seat")
	if f.chooseSeat != nil {
		return f.chooseSeat(serial)
	}
	return &types.SeatAssignment{
		StudentID:   fmt.Sprintf("stu-%d", serial),
		SocketToken: fmt.Sprintf("tok-%d", serial),
		SeatNumber:  serial,
	}, nil
}

func (f *fakeAPI) FetchQuiz(context.Context, string, string) (*types.QuizContent, error) {
	f.record("fetch_quiz")
	if f.fetchQuiz != nil {
		return f.fetchQuiz()
	}
	return &types.QuizContent{Quizzes: []types.Quiz{
		{QuizID: "q1", Seq: 1, QuizType: types.QuizTypeTrueFalse, OptionList: twoOptions()},
		{QuizID: "q2", Seq: 2, QuizType: types.QuizTypeSingleSelect, OptionList: fourOptions()},
		{QuizID: "q3", Seq: 3, QuizType: types.QuizTypeMultipleSelect, OptionList: fourOptions()},
	}}, nil
}

func (f *fakeAPI) SubmitAnswers(_ context.Context, batchID, studentID string, answers []types.QuizAnswer) error {
	f.record("submit_answers")
	if f.submitAnswers != nil {
		return f.submitAnswers(batchID, studentID, answers)
	}
	return nil
}

func (f *fakeAPI) CreateQuiz(context.Context, string) (string, error) {
	f.record("create_quiz")
	if f.createQuiz != nil {
		return f.createQuiz()
	}
	return "batch-1", nil
}

func (f *fakeAPI) FinishQuiz(context.Context, string, string) error {
	f.record("finish_quiz")
	return nil
}

func (f *fakeAPI) DiscloseQuiz(context.Context, string, string) error {
	f.record("disclose_quiz")
	return nil
}

func (f *fakeAPI) CloseQuiz(context.Context, string, string) error {
	f.record("close_quiz")
	return nil
}

func (f *fakeAPI) AddStudentPoints(_ context.Context, _ string, students []types.StudentPoints) error {
	f.record("add_student_points")
	if f.addPoints != nil {
		return f.addPoints(students)
	}
	return nil
}

func twoOptions() []types.QuizOption {
	return []types.QuizOption{{OptionID: 1}, {OptionID: 2}}
}

func fourOptions() []types.QuizOption {
	return []types.QuizOption{{OptionID: 1}, {OptionID: 2}, {OptionID: 3}, {OptionID: 4}}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
