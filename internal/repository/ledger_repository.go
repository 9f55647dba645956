package repository

import (
	"context"

	"app/internal/domain/model"
)

// 在庫台帳。quantityと履歴への書き込みは調整トランザクションだけが通る。
type LedgerRepository interface {
	// 行ロック付きで現在のquantityを読む（SELECT ... FOR UPDATE）。
	// トランザクション内で呼ぶこと。
	QuantityForUpdate(ctx context.Context, medicineID int64) (int64, error)

	// quantityを新しい値にして updated_at も更新
	SetQuantity(ctx context.Context, medicineID int64, newQuantity int64) error

	// 履歴を1件追記
	AppendEntry(ctx context.Context, entry model.StockHistory) error

	// 履歴一覧（changed_at降順）。ロック不要の読み取り。
	ListByMedicineID(ctx context.Context, medicineID int64) ([]model.StockHistory, error)
}
