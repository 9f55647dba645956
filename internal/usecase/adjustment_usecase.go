package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/infra/cache"
	repo "app/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
)

// 在庫調整。quantityの更新と履歴の追記は必ずここを通る。
// アプリ内ロックは持たず、直列化はDBの行ロック＋SERIALIZABLEに任せる
// （同じDBに複数プロセスがぶら下がるため）。
type AdjustmentUsecase struct {
	tx         repo.TransactionManager
	medicines  repo.MedicineRepository
	ledger     repo.LedgerRepository
	cache      *cache.MedicineCache
	maxRetries int
	backoff    time.Duration
}

func NewAdjustmentUsecase(
	tx repo.TransactionManager,
	medicines repo.MedicineRepository,
	ledger repo.LedgerRepository,
	c *cache.MedicineCache,
	maxRetries int,
	backoffMs int,
) *AdjustmentUsecase {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoffMs <= 0 {
		backoffMs = 20
	}
	return &AdjustmentUsecase{
		tx:         tx,
		medicines:  medicines,
		ledger:     ledger,
		cache:      c,
		maxRetries: maxRetries,
		backoff:    time.Duration(backoffMs) * time.Millisecond,
	}
}

type AdjustStockInput struct {
	ChangeAmount int64
	Reason       string
	ChangedBy    string
}

// 1件の医薬品に符号付きのdeltaを適用する。
// 読み→検証→quantity更新→履歴追記を1つのSERIALIZABLEトランザクションで行う。
func (u *AdjustmentUsecase) Adjust(ctx context.Context, actorUserID int64, medicineID int64, in AdjustStockInput) (model.Medicine, error) {
	if actorUserID <= 0 {
		return model.Medicine{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if medicineID <= 0 {
		return model.Medicine{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid medicine id")
	}
	//delta=0はトランザクションを開く前に弾く（呼び出し側のバグ）
	if in.ChangeAmount == 0 {
		return model.Medicine{}, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "change_amount must be non-zero")
	}

	var updated model.Medicine

	attempt := 0
	for {
		err := u.tx.WithinSerializableTx(ctx, func(r repo.TxRepos) error {
			//行ロック付きで現在値を読む。同じ医薬品への調整はここで直列化される。
			qty, err := r.Ledger().QuantityForUpdate(ctx, medicineID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusNotFound, CodeNotFound, "medicine not found")
			}
			if err != nil {
				return err
			}

			//在庫が負になる調整は同じトランザクション内で弾く（TOCTOU防止）
			newQty := qty + in.ChangeAmount
			if newQty < 0 {
				return NewHTTPError(http.StatusBadRequest, CodeInsufficientStock, "insufficient stock")
			}

			if err := r.Ledger().SetQuantity(ctx, medicineID, newQty); err != nil {
				return err
			}

			//履歴を1件追記（同じトランザクション。片方だけ残ることはない）
			entry := model.StockHistory{
				MedicineID:   medicineID,
				ChangeAmount: in.ChangeAmount,
				Reason:       strings.TrimSpace(in.Reason),
				ChangedBy:    strings.TrimSpace(in.ChangedBy),
				ChangedAt:    time.Now(),
			}
			if err := r.Ledger().AppendEntry(ctx, entry); err != nil {
				return err
			}

			//監査ログ（ADJUST_STOCK）
			beforeJSON := fmt.Sprintf(`{"quantity":%d}`, qty)
			afterJSON := fmt.Sprintf(`{"quantity":%d}`, newQty)
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actorUserID,
				Action:       model.AuditActionAdjustStock,
				ResourceType: model.AuditResourceMedicine,
				ResourceID:   medicineID,
				BeforeJSON:   beforeJSON,
				AfterJSON:    afterJSON,
				CreatedAt:    time.Now(),
			}); err != nil {
				return err
			}

			//呼び出し元に返すスナップショット。新しいquantityは手元にあるので再読込は不要。
			m, err := r.Medicines().FindByID(ctx, medicineID)
			if err != nil {
				return err
			}
			m.Quantity = newQty
			updated = m
			return nil
		})

		if err == nil {
			break
		}

		//業務エラー（404/400など）はそのまま返す。リトライしない。
		if he, ok := AsHTTPError(err); ok {
			return model.Medicine{}, he
		}

		//直列化失敗は限定回数リトライ（倍々バックオフ）
		if isSerializationFailure(err) {
			if attempt < u.maxRetries {
				if werr := waitBackoff(ctx, u.backoff<<attempt); werr != nil {
					return model.Medicine{}, NewHTTPError(http.StatusConflict, CodeConflict, "adjustment conflicted, retry later")
				}
				attempt++
				continue
			}
			return model.Medicine{}, NewHTTPError(http.StatusConflict, CodeConflict, "adjustment conflicted, retry later")
		}

		//ロック待ちタイムアウトもconflict扱い（リトライは呼び出し側）
		if isLockTimeout(err) {
			return model.Medicine{}, NewHTTPError(http.StatusConflict, CodeConflict, "lock wait timeout, retry later")
		}

		return model.Medicine{}, NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	//commit後にキャッシュを消す（best effort）
	u.cache.Invalidate(ctx, medicineID)

	return updated, nil
}

// 履歴一覧（新しい順）。ロック不要の読み取り。トランザクションは開かない。
func (u *AdjustmentUsecase) History(ctx context.Context, medicineID int64) ([]model.StockHistory, error) {
	if medicineID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, CodeInvalidInput, "invalid medicine id")
	}

	//存在しないIDは404
	if _, err := u.medicines.FindByID(ctx, medicineID); err != nil {
		if err == repo.ErrNotFound {
			return nil, NewHTTPError(http.StatusNotFound, CodeNotFound, "medicine not found")
		}
		return nil, NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	entries, err := u.ledger.ListByMedicineID(ctx, medicineID)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, CodeBackendFailure, "db error")
	}

	return entries, nil
}

// SQLSTATE 40001 = serialization_failure, 40P01 = deadlock_detected
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// SQLSTATE 55P03 = lock_not_available
func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "55P03"
	}
	return false
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
