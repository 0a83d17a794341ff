package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPlan_DerivedValues(t *testing.T) {
	cfg := Config{
		TeacherHeadStart:   20 * time.Second,
		StudentSessionTime: 60 * time.Second,
	}

	plan := NewPlan(cfg, 30)

	// 20 + 45 + floor(30/10)*5 = 80s
	assert.Equal(t, 80*time.Second, plan.QuizCreateDelay)
	// max(30 + 15, 60-10) = 50s
	assert.Equal(t, 50*time.Second, plan.AnswerWait)
	assert.Equal(t, plan.QuizCreateDelay+plan.AnswerWait+30*time.Second, plan.StudentTimeout)
}

func TestNewPlan_SessionTimeFloor(t *testing.T) {
	cfg := Config{StudentSessionTime: 300 * time.Second}
	plan := NewPlan(cfg, 5)

	// session time dominates: max(30, 290) = 290s
	assert.Equal(t, 290*time.Second, plan.AnswerWait)
}

func TestNewPlan_Overrides(t *testing.T) {
	cfg := Config{
		QuizCreateDelayOverride: 7 * time.Second,
		AnswerWaitOverride:      11 * time.Second,
		TeacherHeadStart:        time.Hour,
		StudentSessionTime:      time.Hour,
	}

	plan := NewPlan(cfg, 100)

	assert.Equal(t, 7*time.Second, plan.QuizCreateDelay)
	assert.Equal(t, 11*time.Second, plan.AnswerWait)
	assert.Equal(t, 48*time.Second, plan.StudentTimeout)
}

func TestNewPlan_MonotonicInRoomSize(t *testing.T) {
	cfg := Config{TeacherHeadStart: 10 * time.Second, StudentSessionTime: 30 * time.Second}

	prev := time.Duration(-1)
	for students := 0; students <= 200; students++ {
		plan := NewPlan(cfg, students)
		assert.GreaterOrEqual(t, plan.QuizCreateDelay, prev,
			"quizCreateDelay must be non-decreasing in room size at %d", students)
		assert.Greater(t, plan.StudentTimeout, plan.QuizCreateDelay+plan.AnswerWait,
			"student timeout must fire strictly after the scheduled quiz close")
		prev = plan.QuizCreateDelay
	}
}

func TestNewPlan_Deterministic(t *testing.T) {
	cfg := Config{TeacherHeadStart: 15 * time.Second, StudentSessionTime: 120 * time.Second}

	a := NewPlan(cfg, 42)
	b := NewPlan(cfg, 42)
	assert.Equal(t, a, b, "every actor in a room must share an identical plan")
}

func TestCloseDelay(t *testing.T) {
	// Single round closes after the full answer window.
	assert.Equal(t, 40*time.Second, CloseDelay(1, 40*time.Second, time.Hour))

	// Multi-round runs use max(90s, 0.7*interval).
	assert.Equal(t, 90*time.Second, CloseDelay(5, 40*time.Second, time.Minute))
	assert.Equal(t, 140*time.Second, CloseDelay(5, 40*time.Second, 200*time.Second))
}
