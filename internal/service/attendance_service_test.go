package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type mockAttendanceRepo struct {
	rows        map[string]*models.Attendance
	batchCalls  int
	summaryArgs models.AttendanceFilter
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{rows: map[string]*models.Attendance{}}
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	var out []models.AttendanceDetail
	for _, r := range m.rows {
		out = append(out, models.AttendanceDetail{Attendance: *r})
	}
	return out, len(out), nil
}

func (m *mockAttendanceRepo) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *r
	return &copy, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, rec *models.Attendance) error {
	rec.ID = rec.StudentID + "@" + rec.Date.Format(dateLayout)
	m.rows[rec.ID] = rec
	return nil
}

func (m *mockAttendanceRepo) UpsertBatch(ctx context.Context, recs []*models.Attendance) error {
	m.batchCalls++
	for _, r := range recs {
		_ = m.Upsert(ctx, r)
	}
	return nil
}

func (m *mockAttendanceRepo) Update(ctx context.Context, rec *models.Attendance) error {
	m.rows[rec.ID] = rec
	return nil
}

func (m *mockAttendanceRepo) Delete(ctx context.Context, id string) error {
	delete(m.rows, id)
	return nil
}

func (m *mockAttendanceRepo) Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error) {
	m.summaryArgs = filter
	summary := &models.AttendanceSummary{StudentID: filter.StudentID}
	for _, r := range m.rows {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		summary.Total++
		switch r.Status {
		case models.AttendanceStatusPresent:
			summary.Present++
		case models.AttendanceStatusAbsent:
			summary.Absent++
		case models.AttendanceStatusLate:
			summary.Late++
		case models.AttendanceStatusExcused:
			summary.Excused++
		}
	}
	summary.ComputeRate()
	return summary, nil
}

func newTestAttendanceService(repo *mockAttendanceRepo) *AttendanceService {
	assignments := mockAssignments{"t-1": {"c1": nil}}
	members := mockMembership{"c1": {"s1", "s2", "s3"}}
	return NewAttendanceService(repo, assignments, members, newTestCache(newMemoryCache()), nil, nil)
}

func TestAttendanceServiceMark(t *testing.T) {
	repo := newMockAttendanceRepo()
	svc := newTestAttendanceService(repo)

	rec, err := svc.Mark(context.Background(), teacherClaims("t-1"), MarkAttendanceRequest{StudentID: "s1", ClassID: "c1", Date: "2024-10-07", Status: "present"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, rec.Status)
	assert.Equal(t, time.Date(2024, 10, 7, 0, 0, 0, 0, time.UTC), rec.Date)

	_, err = svc.Mark(context.Background(), teacherClaims("t-2"), MarkAttendanceRequest{StudentID: "s1", ClassID: "c1", Date: "2024-10-07", Status: "PRESENT"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Mark(context.Background(), adminClaims(), MarkAttendanceRequest{StudentID: "s1", ClassID: "c1", Date: "07/10/2024", Status: "PRESENT"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Mark(context.Background(), adminClaims(), MarkAttendanceRequest{StudentID: "s1", ClassID: "c1", Date: "2024-10-07", Status: "SICK"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkClass(t *testing.T) {
	repo := newMockAttendanceRepo()
	svc := newTestAttendanceService(repo)

	recs, err := svc.MarkClass(context.Background(), teacherClaims("t-1"), BulkAttendanceRequest{
		ClassID: "c1",
		Date:    "2024-10-08",
		Records: []ClassAttendanceRecord{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "s2", Status: "late", Remarks: " bus delay "},
			{StudentID: "s3", Status: "ABSENT"},
		},
	})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "bus delay", recs[1].Remarks)
	assert.Equal(t, 1, repo.batchCalls)

	_, err = svc.MarkClass(context.Background(), teacherClaims("t-1"), BulkAttendanceRequest{
		ClassID: "c1",
		Date:    "2024-10-09",
		Records: []ClassAttendanceRecord{{StudentID: "s1", Status: "PRESENT"}, {StudentID: "x9", Status: "PRESENT"}},
	})
	require.Error(t, err)
	assert.Equal(t, "students not in class: x9", appErrors.FromError(err).Message)
	assert.Equal(t, 1, repo.batchCalls)
}

func TestAttendanceServiceSummary(t *testing.T) {
	repo := newMockAttendanceRepo()
	svc := newTestAttendanceService(repo)
	ctx := context.Background()
	for day, status := range map[string]string{"2024-10-07": "PRESENT", "2024-10-08": "LATE", "2024-10-09": "ABSENT", "2024-10-10": "EXCUSED"} {
		_, err := svc.Mark(ctx, adminClaims(), MarkAttendanceRequest{StudentID: "s1", ClassID: "c1", Date: day, Status: status})
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, models.AttendanceFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.InDelta(t, 0.5, summary.Rate, 1e-9)

	empty, err := svc.Summary(ctx, models.AttendanceFilter{StudentID: "s2"})
	require.NoError(t, err)
	assert.Zero(t, empty.Rate)

	_, err = svc.Summary(ctx, models.AttendanceFilter{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	from := time.Date(2024, 10, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Summary(ctx, models.AttendanceFilter{ClassID: "c1", From: &from, To: &to})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceUpdateAndDelete(t *testing.T) {
	repo := newMockAttendanceRepo()
	repo.rows["a1"] = &models.Attendance{ID: "a1", StudentID: "s1", ClassID: "c1", Status: models.AttendanceStatusAbsent}
	svc := newTestAttendanceService(repo)

	rec, err := svc.Update(context.Background(), teacherClaims("t-1"), "a1", UpdateAttendanceRequest{Status: ptr("excused"), Remarks: ptr("hospital")})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusExcused, rec.Status)
	assert.Equal(t, "hospital", rec.Remarks)

	err = svc.Delete(context.Background(), teacherClaims("t-9"), "a1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "a1"))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(svc.Delete(context.Background(), adminClaims(), "a1")).Code)
}
