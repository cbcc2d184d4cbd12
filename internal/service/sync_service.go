package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type syncRepository interface {
	Find(ctx context.Context, clientID, opID string) (*models.SyncRecord, error)
	Record(ctx context.Context, rec *models.SyncRecord) error
}

type permissionChecker interface {
	Allowed(ctx context.Context, role models.UserRole, resource, action string) (bool, error)
}

type gradeWriter interface {
	Upsert(ctx context.Context, actor *models.JWTClaims, req UpsertGradeRequest) (*models.Grade, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

type attendanceWriter interface {
	Mark(ctx context.Context, actor *models.JWTClaims, req MarkAttendanceRequest) (*models.Attendance, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

type evaluationWriter interface {
	Upsert(ctx context.Context, actor *models.JWTClaims, req UpsertEvaluationRequest) (*models.Evaluation, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// SyncService replays writes queued by offline clients. Operations run in
// queue order through the same services as the REST endpoints; the last
// write to arrive wins.
type SyncService struct {
	repo         syncRepository
	permissions  permissionChecker
	grades       gradeWriter
	attendance   attendanceWriter
	evaluations  evaluationWriter
	metrics      *MetricsService
	maxBatchSize int
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewSyncService constructs SyncService.
func NewSyncService(
	repo syncRepository,
	permissions permissionChecker,
	grades gradeWriter,
	attendance attendanceWriter,
	evaluations evaluationWriter,
	metrics *MetricsService,
	maxBatchSize int,
	validate *validator.Validate,
	logger *zap.Logger,
) *SyncService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 200
	}
	return &SyncService{
		repo:         repo,
		permissions:  permissions,
		grades:       grades,
		attendance:   attendance,
		evaluations:  evaluations,
		metrics:      metrics,
		maxBatchSize: maxBatchSize,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

type syncDeletePayload struct {
	ID string `json:"id" validate:"required"`
}

var syncPermissionResources = map[string]string{
	models.SyncResourceAttendance: models.ResourceAttendance,
	models.SyncResourceGrade:      models.ResourceGrades,
	models.SyncResourceEvaluation: models.ResourceEvaluations,
}

// Replay applies a client's queued operations and reports a result per operation.
func (s *SyncService) Replay(ctx context.Context, actor *models.JWTClaims, req models.SyncRequest) (*models.SyncResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if len(req.Operations) > s.maxBatchSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("at most %d operations per sync", s.maxBatchSize))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid sync payload")
	}

	ops := make([]models.SyncOperation, len(req.Operations))
	copy(ops, req.Operations)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].QueuedAt.Before(ops[j].QueuedAt) })

	resp := &models.SyncResponse{ClientID: req.ClientID, Results: make([]models.SyncOperationResult, 0, len(ops))}
	for _, op := range ops {
		result := s.replayOne(ctx, actor, req.ClientID, op)
		switch result.Status {
		case models.SyncStatusApplied:
			resp.Applied++
		case models.SyncStatusDuplicate:
			resp.Duplicates++
		default:
			resp.Failed++
		}
		s.metrics.RecordSyncOperation(op.Resource, result.Status)
		resp.Results = append(resp.Results, result)
	}
	s.logger.Info("sync replayed",
		zap.String("client_id", req.ClientID),
		zap.String("user_id", actor.UserID),
		zap.Int("applied", resp.Applied),
		zap.Int("duplicates", resp.Duplicates),
		zap.Int("failed", resp.Failed),
	)
	return resp, nil
}

func (s *SyncService) replayOne(ctx context.Context, actor *models.JWTClaims, clientID string, op models.SyncOperation) models.SyncOperationResult {
	result := models.SyncOperationResult{OpID: op.OpID}

	existing, err := s.repo.Find(ctx, clientID, op.OpID)
	switch {
	case err == nil && existing != nil:
		result.Status = models.SyncStatusDuplicate
		result.RecordID = existing.RecordID
		return result
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return failedResult(result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check sync history"))
	}

	if err := s.authorize(ctx, actor, op); err != nil {
		return failedResult(result, err)
	}
	recordID, err := s.apply(ctx, actor, op)
	if err != nil {
		return failedResult(result, err)
	}

	rec := &models.SyncRecord{
		ClientID:  clientID,
		OpID:      op.OpID,
		Resource:  op.Resource,
		Action:    op.Action,
		RecordID:  recordID,
		AppliedBy: actorID(actor),
		AppliedAt: s.now().UTC(),
	}
	if err := s.repo.Record(ctx, rec); err != nil {
		// the write itself succeeded; a later replay of this op re-applies the same values
		s.logger.Warn("failed to record sync operation", zap.String("client_id", clientID), zap.String("op_id", op.OpID), zap.Error(err))
	}
	result.Status = models.SyncStatusApplied
	result.RecordID = recordID
	return result
}

func (s *SyncService) authorize(ctx context.Context, actor *models.JWTClaims, op models.SyncOperation) error {
	if s.permissions == nil {
		return nil
	}
	action := models.ActionCreate
	if op.Action == models.SyncActionDelete {
		action = models.ActionDelete
	}
	ok, err := s.permissions.Allowed(ctx, actor.Role, syncPermissionResources[op.Resource], action)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not allowed to %s %s", op.Action, op.Resource))
	}
	return nil
}

func (s *SyncService) apply(ctx context.Context, actor *models.JWTClaims, op models.SyncOperation) (string, error) {
	if op.Action == models.SyncActionDelete {
		var payload syncDeletePayload
		if err := s.decode(op.Payload, &payload); err != nil {
			return "", err
		}
		switch op.Resource {
		case models.SyncResourceGrade:
			return payload.ID, s.grades.Delete(ctx, actor, payload.ID)
		case models.SyncResourceAttendance:
			return payload.ID, s.attendance.Delete(ctx, actor, payload.ID)
		default:
			return payload.ID, s.evaluations.Delete(ctx, actor, payload.ID)
		}
	}

	switch op.Resource {
	case models.SyncResourceGrade:
		var req UpsertGradeRequest
		if err := s.decode(op.Payload, &req); err != nil {
			return "", err
		}
		grade, err := s.grades.Upsert(ctx, actor, req)
		if err != nil {
			return "", err
		}
		return grade.ID, nil
	case models.SyncResourceAttendance:
		var req MarkAttendanceRequest
		if err := s.decode(op.Payload, &req); err != nil {
			return "", err
		}
		rec, err := s.attendance.Mark(ctx, actor, req)
		if err != nil {
			return "", err
		}
		return rec.ID, nil
	default:
		var req UpsertEvaluationRequest
		if err := s.decode(op.Payload, &req); err != nil {
			return "", err
		}
		evaluation, err := s.evaluations.Upsert(ctx, actor, req)
		if err != nil {
			return "", err
		}
		return evaluation.ID, nil
	}
}

func (s *SyncService) decode(raw json.RawMessage, dest interface{}) error {
	if len(raw) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "payload is required")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "payload is not valid JSON for the resource")
	}
	if p, ok := dest.(*syncDeletePayload); ok {
		if err := s.validator.Struct(p); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "delete payload requires an id")
		}
	}
	return nil
}

// failedResult marks an operation failed. Only server-side failures are worth
// retrying; validation and permission failures will fail again.
func failedResult(result models.SyncOperationResult, err error) models.SyncOperationResult {
	appErr := appErrors.FromError(err)
	result.Status = models.SyncStatusFailed
	result.Message = appErr.Message
	result.Retryable = appErr.Retryable()
	return result
}
