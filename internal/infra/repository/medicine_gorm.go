package repository

import (
	"context"
	"errors"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type MedicineGormRepository struct {
	db *gorm.DB
}

// DI
func NewMedicineGormRepository(db *gorm.DB) *MedicineGormRepository {
	return &MedicineGormRepository{db: db}
}

// 検索/価格帯/ソート/ページング付きで返す。
func (r *MedicineGormRepository) List(ctx context.Context, q repo.MedicineListQuery) ([]model.Medicine, int64, error) {
	var medicines []model.Medicine
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Medicine{})

	// q はname/skuを対象
	if strings.TrimSpace(q.Q) != "" {
		like := "%" + strings.TrimSpace(q.Q) + "%"
		tx = tx.Where("name ILIKE ? OR sku ILIKE ?", like, like)
	}

	//価格帯
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Medicine{}, 0, err
	}

	//sort
	switch q.Sort {
	case "price_asc":
		tx = tx.Order("price asc").Order("id asc")
	case "price_desc":
		tx = tx.Order("price desc").Order("id desc")
	case "expiry":
		tx = tx.Order("expiry_date asc nulls last").Order("id asc")
	default:
		tx = tx.Order("created_at desc").Order("id desc")
	}

	offset := (q.Page - 1) * q.Limit
	if err := tx.Offset(offset).Limit(q.Limit).Find(&medicines).Error; err != nil {
		return []model.Medicine{}, 0, err
	}

	return medicines, total, nil
}

// IDで医薬品を取得
func (r *MedicineGormRepository) FindByID(ctx context.Context, id int64) (model.Medicine, error) {
	var m model.Medicine
	err := r.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Medicine{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Medicine{}, err
	}
	return m, nil
}

// 医薬品の作成（SKU重複は ErrDuplicateSKU）
func (r *MedicineGormRepository) Create(ctx context.Context, m model.Medicine) (model.Medicine, error) {
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Medicine{}, repo.ErrDuplicateSKU
		}
		return model.Medicine{}, err
	}
	return m, nil
}

// メタデータのみ更新。quantityはLedger以外から触らない。
func (r *MedicineGormRepository) UpdateMetadata(ctx context.Context, m model.Medicine) error {
	res := r.db.WithContext(ctx).Model(&model.Medicine{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
		"sku":          m.SKU,
		"name":         m.Name,
		"manufacturer": m.Manufacturer,
		"price":        m.Price,
		"expiry_date":  m.ExpiryDate,
	})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return repo.ErrDuplicateSKU
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 医薬品の削除（soft delete）
func (r *MedicineGormRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Medicine{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// SQLSTATE 23505 = unique_violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
