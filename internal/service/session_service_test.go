package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type mockSessionRepo struct {
	sessions []models.Session
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	session.ID = "sess-1"
	m.sessions = append(m.sessions, *session)
	return nil
}

func (m *mockSessionRepo) ListBySchool(ctx context.Context, schoolID string) ([]models.SessionDetail, error) {
	var list []models.SessionDetail
	for _, s := range m.sessions {
		if s.SchoolID == schoolID {
			list = append(list, models.SessionDetail{Session: s})
		}
	}
	return list, nil
}

func (m *mockSessionRepo) ListByStudent(ctx context.Context, studentID string) ([]models.SessionDetail, error) {
	var list []models.SessionDetail
	for _, s := range m.sessions {
		if s.StudentID == studentID {
			list = append(list, models.SessionDetail{Session: s})
		}
	}
	return list, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	for i, s := range m.sessions {
		if s.ID == id {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return nil
		}
	}
	return nil
}

type stubApprovedChecker struct {
	approved map[string]bool
}

func (s *stubApprovedChecker) HasApproved(ctx context.Context, studentID, schoolID string) (bool, error) {
	return s.approved[studentID+"/"+schoolID], nil
}

type stubTeacherChecker struct {
	members map[string]bool
}

func (s *stubTeacherChecker) TeacherBelongsToSchool(ctx context.Context, schoolID, teacherID string) (bool, error) {
	return s.members[schoolID+"/"+teacherID], nil
}

func validSessionRequest() CreateSessionRequest {
	return CreateSessionRequest{
		TeacherID:       "t1",
		StudentID:       "s1",
		CourseType:      models.CourseTypeRoad,
		ScheduledAt:     time.Now().Add(48 * time.Hour),
		DurationMinutes: 60,
		Location:        "Bab Ezzouar circuit",
	}
}

func TestSessionServiceCreate(t *testing.T) {
	repo := &mockSessionRepo{}
	notifier := &stubNotifier{}
	svc := NewSessionService(repo,
		&stubApprovedChecker{approved: map[string]bool{"s1/sc1": true}},
		&stubTeacherChecker{members: map[string]bool{"sc1/t1": true}},
		notifier, validator.New(), zap.NewNop())

	session, err := svc.Create(context.Background(), "sc1", validSessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "sc1", session.SchoolID)
	assert.Contains(t, notifier.sent, models.NotificationSessionScheduled)
}

func TestSessionServiceCreateRequiresApprovedEnrollment(t *testing.T) {
	svc := NewSessionService(&mockSessionRepo{},
		&stubApprovedChecker{},
		&stubTeacherChecker{members: map[string]bool{"sc1/t1": true}},
		nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "sc1", validSessionRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceCreateUnknownTeacher(t *testing.T) {
	svc := NewSessionService(&mockSessionRepo{},
		&stubApprovedChecker{approved: map[string]bool{"s1/sc1": true}},
		&stubTeacherChecker{},
		nil, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), "sc1", validSessionRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceCreateDurationBounds(t *testing.T) {
	svc := NewSessionService(&mockSessionRepo{},
		&stubApprovedChecker{approved: map[string]bool{"s1/sc1": true}},
		&stubTeacherChecker{members: map[string]bool{"sc1/t1": true}},
		nil, validator.New(), zap.NewNop())

	req := validSessionRequest()
	req.DurationMinutes = 10
	_, err := svc.Create(context.Background(), "sc1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
