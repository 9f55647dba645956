package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// SKU重複など、一意制約に当たったとき
var ErrDuplicateSKU = errors.New("duplicate sku")

// GET /medicines の検索条件
type MedicineListQuery struct {
	Page     int
	Limit    int
	Q        string
	MinPrice *float64
	MaxPrice *float64
	Sort     string
}

// 医薬品マスタのCRUD。quantityの更新はここではやらない（Ledger側）
type MedicineRepository interface {
	List(ctx context.Context, q MedicineListQuery) ([]model.Medicine, int64, error)

	FindByID(ctx context.Context, medicineID int64) (model.Medicine, error)

	Create(ctx context.Context, m model.Medicine) (model.Medicine, error)

	// メタデータのみ更新（name/sku/manufacturer/price/expiry_date）
	UpdateMetadata(ctx context.Context, m model.Medicine) error

	SoftDelete(ctx context.Context, medicineID int64) error
}
