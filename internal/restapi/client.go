// Package restapi is the typed client for the classroom service's plain
// request/response surface: room and lesson lifecycle, seat assignment,
// and the quiz batch lifecycle. The core consumes these as named
// operations; all transport detail lives here.
package restapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"classload/pkg/types"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Client is the set of REST operations the actors and the room
// orchestrator consume.
type Client interface {
	CreateRoom(ctx context.Context, index int) (string, error)
	CreateLesson(ctx context.Context, roomID string) (string, error)
	StartLesson(ctx context.Context, lessonID string) error
	EndLesson(ctx context.Context, lessonID string) error

	ChooseSeat(ctx context.Context, lessonID string, serial int, sessionID, deviceID string) (*types.SeatAssignment, error)
	FetchQuiz(ctx context.Context, lessonID, studentID string) (*types.QuizContent, error)
	SubmitAnswers(ctx context.Context, batchID, studentID string, answers []types.QuizAnswer) error

	CreateQuiz(ctx context.Context, lessonID string) (string, error)
	FinishQuiz(ctx context.Context, lessonID, batchID string) error
	DiscloseQuiz(ctx context.Context, lessonID, batchID string) error
	CloseQuiz(ctx context.Context, lessonID, batchID string) error
	AddStudentPoints(ctx context.Context, lessonID string, students []types.StudentPoints) error
}

// Config for the HTTP client.
type Config struct {
	BaseURL      string
	TeacherToken string
	CollectionID string
	Timeout      time.Duration
}

// HTTPClient implements Client against a live service.
type HTTPClient struct {
	cfg  Config
	http *http.Client
	log  *logrus.Entry
}

// NewHTTPClient creates a client with the teacher's bearer token attached
// to instructor-side operations.
func NewHTTPClient(cfg Config, log *logrus.Entry) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HTTPClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// envelope is the service's standard {"data": ...} response wrapper.
type envelope struct {
	Data jsoniter.RawMessage `json:"data"`
}

func (c *HTTPClient) CreateRoom(ctx context.Context, index int) (string, error) {
	body := map[string]interface{}{"name": fmt.Sprintf("load-room-%d", index)}
	var out struct {
		RoomID string `json:"room_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v3/rooms", body, &out, true); err != nil {
		return "", fmt.Errorf("create room %d: %w", index, err)
	}
	return out.RoomID, nil
}

// CreateLesson is idempotent per room: a room with an already-active
// lesson returns the existing lesson id.
func (c *HTTPClient) CreateLesson(ctx context.Context, roomID string) (string, error) {
	var out struct {
		LessonID string `json:"lesson_id"`
	}
	path := fmt.Sprintf("/api/v3/rooms/%s/lessons", roomID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out, true); err != nil {
		return "", fmt.Errorf("create lesson for room %s: %w", roomID, err)
	}
	return out.LessonID, nil
}

func (c *HTTPClient) StartLesson(ctx context.Context, lessonID string) error {
	path := fmt.Sprintf("/api/v3/lessons/%s/start", lessonID)
	if err := c.do(ctx, http.MethodPut, path, nil, nil, true); err != nil {
		return fmt.Errorf("start lesson %s: %w", lessonID, err)
	}
	return nil
}

func (c *HTTPClient) EndLesson(ctx context.Context, lessonID string) error {
	path := fmt.Sprintf("/api/v3/lessons/%s/end", lessonID)
	if err := c.do(ctx, http.MethodPut, path, nil, nil, true); err != nil {
		return fmt.Errorf("end lesson %s: %w", lessonID, err)
	}
	return nil
}

// ChooseSeat converts an anonymous connecting student into an
// authenticated participant. No bearer token: the seat endpoint
// authenticates by the namespace session id.
func (c *HTTPClient) ChooseSeat(ctx context.Context, lessonID string, serial int, sessionID, deviceID string) (*types.SeatAssignment, error) {
	body := map[string]interface{}{
		"serial_number": serial,
		"sid":           sessionID,
		"device_id":     deviceID,
		"is_incognito":  false,
	}
	var out types.SeatAssignment
	path := fmt.Sprintf("/api/v3/lessons/%s/choose_seat", lessonID)
	if err := c.do(ctx, http.MethodPost, path, body, &out, false); err != nil {
		return nil, fmt.Errorf("choose seat %d in lesson %s: %w", serial, lessonID, err)
	}
	if out.StudentID == "" || out.SocketToken == "" {
		return nil, ErrSeatAssignment
	}
	return &out, nil
}

func (c *HTTPClient) FetchQuiz(ctx context.Context, lessonID, studentID string) (*types.QuizContent, error) {
	var out types.QuizContent
	path := fmt.Sprintf("/api/v3/lessons/%s/students/%s/batch_quizzes/latest", lessonID, studentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, false); err != nil {
		return nil, fmt.Errorf("fetch quiz for student %s: %w", studentID, err)
	}
	return &out, nil
}

func (c *HTTPClient) SubmitAnswers(ctx context.Context, batchID, studentID string, answers []types.QuizAnswer) error {
	body := map[string]interface{}{
		"student_id": studentID,
		"answers":    answers,
	}
	path := fmt.Sprintf("/api/v3/quizzes/batch_quizzes/%s/batch_quizzes_result", batchID)
	if err := c.do(ctx, http.MethodPut, path, body, nil, false); err != nil {
		return fmt.Errorf("submit answers for student %s: %w", studentID, err)
	}
	return nil
}

func (c *HTTPClient) CreateQuiz(ctx context.Context, lessonID string) (string, error) {
	var out struct {
		BatchQuizzesID string `json:"batch_quizzes_id"`
	}
	path := fmt.Sprintf("/api/v3/lessons/%s/quizzes/batch_quizzes", lessonID)
	if err := c.do(ctx, http.MethodPost, path, quizBatchPayload(lessonID, c.cfg.CollectionID), &out, true); err != nil {
		return "", fmt.Errorf("create quiz batch for lesson %s: %w", lessonID, err)
	}
	return out.BatchQuizzesID, nil
}

func (c *HTTPClient) FinishQuiz(ctx context.Context, lessonID, batchID string) error {
	return c.updateQuizStatus(ctx, lessonID, batchID, "FINISH")
}

func (c *HTTPClient) CloseQuiz(ctx context.Context, lessonID, batchID string) error {
	return c.updateQuizStatus(ctx, lessonID, batchID, "CLOSE")
}

func (c *HTTPClient) DiscloseQuiz(ctx context.Context, lessonID, batchID string) error {
	path := fmt.Sprintf("/api/v3/lessons/%s/quizzes/batch_quizzes/%s/disclose", lessonID, batchID)
	if err := c.do(ctx, http.MethodPut, path, nil, nil, true); err != nil {
		return fmt.Errorf("disclose quiz %s: %w", batchID, err)
	}
	return nil
}

// AddStudentPoints grants points to the listed students in one batch
// call. The service fans the grant out as student_points events.
func (c *HTTPClient) AddStudentPoints(ctx context.Context, lessonID string, students []types.StudentPoints) error {
	body := map[string]interface{}{"students": students}
	path := fmt.Sprintf("/api/v3/lessons/%s/batch_points", lessonID)
	if err := c.do(ctx, http.MethodPut, path, body, nil, true); err != nil {
		return fmt.Errorf("add points for %d students in lesson %s: %w", len(students), lessonID, err)
	}
	return nil
}

func (c *HTTPClient) updateQuizStatus(ctx context.Context, lessonID, batchID, status string) error {
	body := map[string]interface{}{"status": status}
	path := fmt.Sprintf("/api/v3/lessons/%s/quizzes/batch_quizzes/%s", lessonID, batchID)
	if err := c.do(ctx, http.MethodPut, path, body, nil, true); err != nil {
		return fmt.Errorf("update quiz %s to %s: %w", batchID, status, err)
	}
	return nil
}

// do issues one request and unmarshals the response's data envelope (or
// the flat body when the endpoint does not wrap) into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}, authed bool) error {
	var reader io.Reader
	if body != nil {
		data, err := jsonAPI.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed && c.cfg.TeacherToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.TeacherToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Debug("request rejected")
		return fmt.Errorf("%w: %s %s returned %d", ErrRequestFailed, method, path, resp.StatusCode)
	}

	if out == nil || len(data) == 0 {
		return nil
	}

	// Prefer the data envelope; fall back to the flat body for endpoints
	// like choose_seat that respond unwrapped.
	var env envelope
	if err := jsonAPI.Unmarshal(data, &env); err == nil && len(env.Data) > 0 {
		data = env.Data
	}
	if err := jsonAPI.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
