package usecase

import (
	"context"
	"net/http"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type AuditLogUsecase struct {
	auditRepo repo.AuditLogRepository
}

func NewAuditLogUsecase(auditRepo repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{auditRepo: auditRepo}
}

// 監査ログ一覧（管理者のみ）
func (u *AuditLogUsecase) List(ctx context.Context, adminUserID int64, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	if adminUserID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if filter.Limit < 0 {
		return nil, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid limit")
	}

	logs, err := u.auditRepo.List(ctx, filter)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}
	return logs, nil
}
