package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/infra/cache"
	repo "app/internal/repository"
)

// 医薬品マスタのCRUD。quantityはここから触らない（AdjustmentUsecaseだけが更新する）。
type MedicineUsecase struct {
	medicineRepo repo.MedicineRepository
	auditRepo    repo.AuditLogRepository
	cache        *cache.MedicineCache
}

// DI
func NewMedicineUsecase(
	medicineRepo repo.MedicineRepository,
	auditRepo repo.AuditLogRepository,
	c *cache.MedicineCache,
) *MedicineUsecase {
	return &MedicineUsecase{
		medicineRepo: medicineRepo,
		auditRepo:    auditRepo,
		cache:        c,
	}
}

// GET /medicinesの入力DTO
type ListMedicinesInput struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *float64
	MaxPrice *float64
	Sort     string
}

type MedicineListOutput struct {
	Items []model.Medicine `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (u *MedicineUsecase) ListMedicines(ctx context.Context, in ListMedicinesInput) (MedicineListOutput, error) {
	if in.Page < 1 {
		return MedicineListOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return MedicineListOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid limit")
	}
	if len(in.Q) > 100 {
		return MedicineListOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "q too long")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return MedicineListOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return MedicineListOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return MedicineListOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc", "expiry":
	default:
		return MedicineListOutput{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid sort")
	}

	items, total, err := u.medicineRepo.List(ctx, repo.MedicineListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return MedicineListOutput{}, NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	return MedicineListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *MedicineUsecase) GetMedicineDetail(ctx context.Context, medicineID int64) (model.Medicine, error) {
	if medicineID <= 0 {
		return model.Medicine{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid medicine id")
	}

	//キャッシュに居ればそれを返す
	if m, ok := u.cache.Get(ctx, medicineID); ok {
		return m, nil
	}

	m, err := u.medicineRepo.FindByID(ctx, medicineID)
	if err == repo.ErrNotFound {
		return model.Medicine{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err != nil {
		return model.Medicine{}, NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	u.cache.Set(ctx, m)
	return m, nil
}

type CreateMedicineInput struct {
	SKU          string
	Name         string
	Manufacturer string
	Price        float64
	Quantity     int64 // 省略時は0
	ExpiryDate   *time.Time
}

func (u *MedicineUsecase) AdminCreateMedicine(ctx context.Context, adminUserID int64, in CreateMedicineInput) (int64, error) {
	if adminUserID <= 0 {
		return 0, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(in.SKU) == "" {
		return 0, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "sku required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return 0, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "name required")
	}
	if in.Price < 0 {
		return 0, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "price must be >= 0")
	}
	if in.Quantity < 0 {
		return 0, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "quantity must be >= 0")
	}

	now := time.Now()
	m, err := u.medicineRepo.Create(ctx, model.Medicine{
		SKU:          strings.TrimSpace(in.SKU),
		Name:         strings.TrimSpace(in.Name),
		Manufacturer: strings.TrimSpace(in.Manufacturer),
		Price:        in.Price,
		Quantity:     in.Quantity,
		ExpiryDate:   in.ExpiryDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err == repo.ErrDuplicateSKU {
		return 0, NewHTTPError(http.StatusConflict, CodeConflict, "sku already exists")
	}
	if err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	//監査ログ（CREATE_MEDICINE）
	afterJSON := fmt.Sprintf(`{"sku":%q,"quantity":%d}`, m.SKU, m.Quantity)
	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  adminUserID,
		Action:       model.AuditActionCreateMedicine,
		ResourceType: model.AuditResourceMedicine,
		ResourceID:   m.ID,
		BeforeJSON:   "{}",
		AfterJSON:    afterJSON,
		CreatedAt:    time.Now(),
	}); err != nil {
		return 0, NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	return m.ID, nil
}

type UpdateMedicineInput struct {
	SKU          string
	Name         string
	Manufacturer string
	Price        float64
	ExpiryDate   *time.Time
}

// メタデータのみ。quantityはこのAPIでは変えられない。
func (u *MedicineUsecase) AdminUpdateMedicine(ctx context.Context, adminUserID int64, medicineID int64, in UpdateMedicineInput) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if medicineID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid medicine id")
	}
	if strings.TrimSpace(in.SKU) == "" {
		return NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "sku required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "name required")
	}
	if in.Price < 0 {
		return NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "price must be >= 0")
	}

	//変更前（before）
	before, err := u.medicineRepo.FindByID(ctx, medicineID)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	err = u.medicineRepo.UpdateMetadata(ctx, model.Medicine{
		ID:           medicineID,
		SKU:          strings.TrimSpace(in.SKU),
		Name:         strings.TrimSpace(in.Name),
		Manufacturer: strings.TrimSpace(in.Manufacturer),
		Price:        in.Price,
		ExpiryDate:   in.ExpiryDate,
	})
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err == repo.ErrDuplicateSKU {
		return NewHTTPError(http.StatusConflict, CodeConflict, "sku already exists")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	//監査ログ（UPDATE_MEDICINE）
	beforeJSON := fmt.Sprintf(`{"sku":%q,"name":%q,"price":%g}`, before.SKU, before.Name, before.Price)
	afterJSON := fmt.Sprintf(`{"sku":%q,"name":%q,"price":%g}`, strings.TrimSpace(in.SKU), strings.TrimSpace(in.Name), in.Price)
	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  adminUserID,
		Action:       model.AuditActionUpdateMedicine,
		ResourceType: model.AuditResourceMedicine,
		ResourceID:   medicineID,
		BeforeJSON:   beforeJSON,
		AfterJSON:    afterJSON,
		CreatedAt:    time.Now(),
	}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	u.cache.Invalidate(ctx, medicineID)
	return nil
}

func (u *MedicineUsecase) AdminDeleteMedicine(ctx context.Context, adminUserID int64, medicineID int64) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if medicineID <= 0 {
		return NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid medicine id")
	}

	err := u.medicineRepo.SoftDelete(ctx, medicineID)
	if err == repo.ErrNotFound {
		return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	//監査ログ（DELETE_MEDICINE）
	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  adminUserID,
		Action:       model.AuditActionDeleteMedicine,
		ResourceType: model.AuditResourceMedicine,
		ResourceID:   medicineID,
		BeforeJSON:   "{}",
		AfterJSON:    "{}",
		CreatedAt:    time.Now(),
	}); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	u.cache.Invalidate(ctx, medicineID)
	return nil
}
