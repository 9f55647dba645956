package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Medicines() MedicineRepository
	Ledger() LedgerRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// 在庫調整はSERIALIZABLEで実行する（write skew防止）。
type TransactionManager interface {
	WithinSerializableTx(ctx context.Context, fn func(r TxRepos) error) error
}
