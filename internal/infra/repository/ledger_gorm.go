package repository

import (
	"context"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerGormRepository struct {
	db *gorm.DB
}

func NewLedgerGormRepository(db *gorm.DB) *LedgerGormRepository {
	return &LedgerGormRepository{db: db}
}

// 行ロック付きでquantityを読む。
// SERIALIZABLEでも明示的にFOR UPDATEを取り、同じ医薬品への調整を直列化する。
func (r *LedgerGormRepository) QuantityForUpdate(ctx context.Context, medicineID int64) (int64, error) {
	var m model.Medicine

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "quantity").
		First(&m, medicineID).Error

	if err == gorm.ErrRecordNotFound {
		return 0, repo.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return m.Quantity, nil
}

// quantityを更新（updated_atも更新される）
func (r *LedgerGormRepository) SetQuantity(ctx context.Context, medicineID int64, newQuantity int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Medicine{}).
		Where("id = ?", medicineID).
		Update("quantity", newQuantity)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 履歴を1件追記
func (r *LedgerGormRepository) AppendEntry(ctx context.Context, entry model.StockHistory) error {
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}
	return nil
}

// 履歴一覧（新しい順）
func (r *LedgerGormRepository) ListByMedicineID(ctx context.Context, medicineID int64) ([]model.StockHistory, error) {
	var entries []model.StockHistory

	err := r.db.WithContext(ctx).
		Where("medicine_id = ?", medicineID).
		Order("changed_at desc").Order("id desc").
		Find(&entries).Error

	if err != nil {
		return nil, err
	}
	return entries, nil
}
