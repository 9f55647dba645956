package repository

import (
	"context"
	"database/sql"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	medicines repo.MedicineRepository
	ledger    repo.LedgerRepository
	auditLogs repo.AuditLogRepository
}

func (r *txReposGorm) Medicines() repo.MedicineRepository { return r.medicines }
func (r *txReposGorm) Ledger() repo.LedgerRepository      { return r.ledger }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// SERIALIZABLEでfnを実行する。
// fnがerrorを返せば全体がrollback、nilならcommit。途中半端な状態は残らない。
func (tm *TxManagerGorm) WithinSerializableTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			medicines: NewMedicineGormRepository(tx),
			ledger:    NewLedgerGormRepository(tx),
			auditLogs: NewAuditLogGormRepository(tx),
		}
		return fn(r)
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}
