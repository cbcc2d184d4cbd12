package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type mockSyncRepo struct {
	records map[string]*models.SyncRecord
	findErr error
}

func (m *mockSyncRepo) Find(ctx context.Context, clientID, opID string) (*models.SyncRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	rec, ok := m.records[clientID+"/"+opID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (m *mockSyncRepo) Record(ctx context.Context, rec *models.SyncRecord) error {
	m.records[rec.ClientID+"/"+rec.OpID] = rec
	return nil
}

type allowAll struct{ denied map[string]bool }

func (a allowAll) Allowed(ctx context.Context, role models.UserRole, resource, action string) (bool, error) {
	return !a.denied[resource+":"+action], nil
}

type recordingWriters struct {
	calls []string
	fail  map[string]error
}

func (r *recordingWriters) Upsert(ctx context.Context, actor *models.JWTClaims, req UpsertGradeRequest) (*models.Grade, error) {
	r.calls = append(r.calls, "grade:"+req.StudentID)
	if err := r.fail["grade:"+req.StudentID]; err != nil {
		return nil, err
	}
	return &models.Grade{ID: "g-" + req.StudentID}, nil
}

func (r *recordingWriters) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	r.calls = append(r.calls, "delete:"+id)
	return nil
}

type attendanceWriterFunc struct{ w *recordingWriters }

func (a attendanceWriterFunc) Mark(ctx context.Context, actor *models.JWTClaims, req MarkAttendanceRequest) (*models.Attendance, error) {
	a.w.calls = append(a.w.calls, "attendance:"+req.StudentID+":"+req.Status)
	return &models.Attendance{ID: "a-" + req.StudentID}, nil
}

func (a attendanceWriterFunc) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	return a.w.Delete(ctx, actor, id)
}

type evaluationWriterFunc struct{ w *recordingWriters }

func (e evaluationWriterFunc) Upsert(ctx context.Context, actor *models.JWTClaims, req UpsertEvaluationRequest) (*models.Evaluation, error) {
	e.w.calls = append(e.w.calls, "evaluation:"+req.StudentID)
	return &models.Evaluation{ID: "e-" + req.StudentID}, nil
}

func (e evaluationWriterFunc) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	return e.w.Delete(ctx, actor, id)
}

func payload(t *testing.T, v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func newTestSyncService(repo *mockSyncRepo, writers *recordingWriters, perms permissionChecker) *SyncService {
	svc := NewSyncService(repo, perms, writers, attendanceWriterFunc{writers}, evaluationWriterFunc{writers}, nil, 5, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 10, 7, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestSyncServiceReplaysInQueueOrder(t *testing.T) {
	repo := &mockSyncRepo{records: map[string]*models.SyncRecord{}}
	writers := &recordingWriters{}
	svc := newTestSyncService(repo, writers, allowAll{})
	base := time.Date(2024, 10, 7, 8, 0, 0, 0, time.UTC)

	resp, err := svc.Replay(context.Background(), teacherClaims("t-1"), models.SyncRequest{
		ClientID: "tablet-1",
		Operations: []models.SyncOperation{
			{OpID: "3", Resource: "attendance", Action: "upsert", QueuedAt: base.Add(2 * time.Minute), Payload: payload(t, MarkAttendanceRequest{StudentID: "s1", Status: "LATE"})},
			{OpID: "1", Resource: "attendance", Action: "upsert", QueuedAt: base, Payload: payload(t, MarkAttendanceRequest{StudentID: "s1", Status: "ABSENT"})},
			{OpID: "2", Resource: "grade", Action: "upsert", QueuedAt: base.Add(time.Minute), Payload: payload(t, UpsertGradeRequest{StudentID: "s1"})},
			{OpID: "2b", Resource: "evaluation", Action: "upsert", QueuedAt: base.Add(time.Minute), Payload: payload(t, UpsertEvaluationRequest{StudentID: "s1"})},
			{OpID: "4", Resource: "grade", Action: "delete", QueuedAt: base.Add(3 * time.Minute), Payload: payload(t, map[string]string{"id": "g-old"})},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Applied)
	assert.Equal(t, []string{"attendance:s1:ABSENT", "grade:s1", "evaluation:s1", "attendance:s1:LATE", "delete:g-old"}, writers.calls)
	assert.Equal(t, "1", resp.Results[0].OpID)
	assert.Equal(t, "a-s1", resp.Results[0].RecordID)

	rec := repo.records["tablet-1/2"]
	require.NotNil(t, rec)
	assert.Equal(t, "g-s1", rec.RecordID)
	assert.Equal(t, "t-1", *rec.AppliedBy)
}

func TestSyncServiceSkipsDuplicates(t *testing.T) {
	repo := &mockSyncRepo{records: map[string]*models.SyncRecord{
		"tablet-1/1": {ClientID: "tablet-1", OpID: "1", RecordID: "g-s1"},
	}}
	writers := &recordingWriters{}
	svc := newTestSyncService(repo, writers, allowAll{})

	resp, err := svc.Replay(context.Background(), adminClaims(), models.SyncRequest{
		ClientID: "tablet-1",
		Operations: []models.SyncOperation{
			{OpID: "1", Resource: "grade", Action: "upsert", QueuedAt: time.Now(), Payload: payload(t, UpsertGradeRequest{StudentID: "s1"})},
			{OpID: "5", Resource: "grade", Action: "upsert", QueuedAt: time.Now().Add(time.Second), Payload: payload(t, UpsertGradeRequest{StudentID: "s2"})},
			{OpID: "5", Resource: "grade", Action: "upsert", QueuedAt: time.Now().Add(2 * time.Second), Payload: payload(t, UpsertGradeRequest{StudentID: "s2"})},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Applied)
	assert.Equal(t, 2, resp.Duplicates)
	assert.Equal(t, models.SyncStatusDuplicate, resp.Results[0].Status)
	assert.Equal(t, "g-s1", resp.Results[0].RecordID)
	assert.Equal(t, []string{"grade:s2"}, writers.calls)
}

func TestSyncServiceFailureRetryability(t *testing.T) {
	repo := &mockSyncRepo{records: map[string]*models.SyncRecord{}}
	writers := &recordingWriters{fail: map[string]error{
		"grade:s1": appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to teach this subject in the class"),
		"grade:s2": appErrors.Wrap(errors.New("connection reset"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade"),
	}}
	svc := newTestSyncService(repo, writers, allowAll{denied: map[string]bool{"evaluations:delete": true}})
	now := time.Now()

	resp, err := svc.Replay(context.Background(), teacherClaims("t-1"), models.SyncRequest{
		ClientID: "phone-7",
		Operations: []models.SyncOperation{
			{OpID: "a", Resource: "grade", Action: "upsert", QueuedAt: now, Payload: payload(t, UpsertGradeRequest{StudentID: "s1"})},
			{OpID: "b", Resource: "grade", Action: "upsert", QueuedAt: now.Add(time.Second), Payload: payload(t, UpsertGradeRequest{StudentID: "s2"})},
			{OpID: "c", Resource: "grade", Action: "upsert", QueuedAt: now.Add(2 * time.Second), Payload: json.RawMessage(`{"student_id":`)},
			{OpID: "d", Resource: "evaluation", Action: "delete", QueuedAt: now.Add(3 * time.Second), Payload: payload(t, map[string]string{"id": "e1"})},
			{OpID: "e", Resource: "attendance", Action: "delete", QueuedAt: now.Add(4 * time.Second), Payload: payload(t, map[string]string{})},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Failed)
	assert.False(t, resp.Results[0].Retryable)
	assert.True(t, resp.Results[1].Retryable)
	assert.Equal(t, "failed to save grade", resp.Results[1].Message)
	assert.False(t, resp.Results[2].Retryable)
	assert.Equal(t, "not allowed to delete evaluation", resp.Results[3].Message)
	assert.Equal(t, "delete payload requires an id", resp.Results[4].Message)
	assert.Empty(t, repo.records)
}

func TestSyncServiceRejectsOversizedBatch(t *testing.T) {
	svc := newTestSyncService(&mockSyncRepo{records: map[string]*models.SyncRecord{}}, &recordingWriters{}, allowAll{})
	ops := make([]models.SyncOperation, 6)
	for i := range ops {
		ops[i] = models.SyncOperation{OpID: string(rune('a' + i)), Resource: "grade", Action: "upsert", QueuedAt: time.Now()}
	}
	_, err := svc.Replay(context.Background(), adminClaims(), models.SyncRequest{ClientID: "c", Operations: ops})
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)

	_, err = svc.Replay(context.Background(), adminClaims(), models.SyncRequest{ClientID: "c", Operations: []models.SyncOperation{{OpID: "x", Resource: "timetable", Action: "upsert", QueuedAt: time.Now()}}})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	history := &mockSyncRepo{records: map[string]*models.SyncRecord{}, findErr: errors.New("db down")}
	svc = newTestSyncService(history, &recordingWriters{}, allowAll{})
	resp, err := svc.Replay(context.Background(), adminClaims(), models.SyncRequest{ClientID: "c", Operations: []models.SyncOperation{{OpID: "x", Resource: "grade", Action: "upsert", QueuedAt: time.Now(), Payload: payload(t, UpsertGradeRequest{})}}})
	require.NoError(t, err)
	assert.True(t, resp.Results[0].Retryable)
}
