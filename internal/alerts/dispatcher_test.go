package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/mtrack/backend/internal/models"
	"github.com/mtrack/backend/pkg/queue"
)

type fakeQueue struct {
	jobs []queue.EmailPayload
	err  error
}

func (f *fakeQueue) EnqueueEmail(_ context.Context, payload queue.EmailPayload) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, payload)
	return nil
}

type fakeUsers struct {
	user *models.User
	err  error
}

func (f *fakeUsers) GetByID(context.Context, uuid.UUID) (*models.User, error) {
	return f.user, f.err
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Email: "user@example.com", Role: models.RoleUser}
}

func prediction(stress, depression string) *models.Prediction {
	return &models.Prediction{
		StressLevel:     stress,
		DepressionLevel: depression,
		Explanations:    []string{"insight"},
	}
}

func TestDispatchNothingBelowThreshold(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, &fakeUsers{user: testUser()}, nil)

	d.Dispatch(context.Background(), uuid.New(), uuid.New(), prediction(models.LevelLow, models.LevelLow))
	d.Dispatch(context.Background(), uuid.New(), uuid.New(), prediction(models.LevelModerate, models.LevelModerate))

	assert.Empty(t, q.jobs)
}

func TestDispatchStressOnly(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, &fakeUsers{user: testUser()}, nil)

	d.Dispatch(context.Background(), uuid.New(), uuid.New(), prediction(models.LevelHigh, models.LevelLow))

	assert.Len(t, q.jobs, 1)
	assert.Equal(t, models.EmailTypeStressAlert, q.jobs[0].EmailType)
	assert.Equal(t, "user@example.com", q.jobs[0].RecipientEmail)
}

func TestDispatchBothAlerts(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, &fakeUsers{user: testUser()}, nil)
	sessionID := uuid.New()

	d.Dispatch(context.Background(), uuid.New(), sessionID, prediction(models.LevelHigh, models.LevelHigh))

	assert.Len(t, q.jobs, 2)
	assert.Equal(t, models.EmailTypeStressAlert, q.jobs[0].EmailType)
	assert.Equal(t, models.EmailTypeDepressionAlert, q.jobs[1].EmailType)
	assert.Equal(t, sessionID, *q.jobs[0].SessionID)
}

func TestDispatchAbsorbsEnqueueFailure(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	d := NewDispatcher(q, &fakeUsers{user: testUser()}, nil)

	// Must not panic or propagate.
	d.Dispatch(context.Background(), uuid.New(), uuid.New(), prediction(models.LevelHigh, models.LevelLow))
}

func TestDispatchAbsorbsLookupFailure(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, &fakeUsers{err: errors.New("no such user")}, nil)

	d.Dispatch(context.Background(), uuid.New(), uuid.New(), prediction(models.LevelHigh, models.LevelLow))
	assert.Empty(t, q.jobs)
}

func TestDispatchNilPrediction(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, &fakeUsers{user: testUser()}, nil)

	d.Dispatch(context.Background(), uuid.New(), uuid.New(), nil)
	assert.Empty(t, q.jobs)
}

func TestBuildAlertEmailBodies(t *testing.T) {
	p := prediction(models.LevelHigh, models.LevelModerate)

	subject, html, text := BuildAlertEmail(models.EmailTypeStressAlert, p)
	assert.Contains(t, subject, "Stress")
	assert.Contains(t, html, "High")
	assert.Contains(t, text, "insight")

	subject, _, _ = BuildAlertEmail(models.EmailTypeDepressionAlert, p)
	assert.Contains(t, subject, "Depression")
}
