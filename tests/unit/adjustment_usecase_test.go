package unit

import (
	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/usecase"
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mocks（衝突回避の命名）
// =====================

type AdjLedgerRepoMock struct{ mock.Mock }

func (m *AdjLedgerRepoMock) QuantityForUpdate(ctx context.Context, medicineID int64) (int64, error) {
	args := m.Called(ctx, medicineID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *AdjLedgerRepoMock) SetQuantity(ctx context.Context, medicineID int64, newQuantity int64) error {
	args := m.Called(ctx, medicineID, newQuantity)
	return args.Error(0)
}

func (m *AdjLedgerRepoMock) AppendEntry(ctx context.Context, entry model.StockHistory) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *AdjLedgerRepoMock) ListByMedicineID(ctx context.Context, medicineID int64) ([]model.StockHistory, error) {
	args := m.Called(ctx, medicineID)
	entries, _ := args.Get(0).([]model.StockHistory)
	return entries, args.Error(1)
}

type AdjMedicineRepoMock struct{ mock.Mock }

func (m *AdjMedicineRepoMock) List(ctx context.Context, q repo.MedicineListQuery) ([]model.Medicine, int64, error) {
	panic("not used in AdjustmentUsecase tests")
}

func (m *AdjMedicineRepoMock) FindByID(ctx context.Context, medicineID int64) (model.Medicine, error) {
	args := m.Called(ctx, medicineID)
	med, _ := args.Get(0).(model.Medicine)
	return med, args.Error(1)
}

func (m *AdjMedicineRepoMock) Create(ctx context.Context, med model.Medicine) (model.Medicine, error) {
	panic("not used in AdjustmentUsecase tests")
}

func (m *AdjMedicineRepoMock) UpdateMetadata(ctx context.Context, med model.Medicine) error {
	panic("not used in AdjustmentUsecase tests")
}

func (m *AdjMedicineRepoMock) SoftDelete(ctx context.Context, medicineID int64) error {
	panic("not used in AdjustmentUsecase tests")
}

type AdjAuditRepoMock struct{ mock.Mock }

func (m *AdjAuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AdjAuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	panic("not used in AdjustmentUsecase tests")
}

// トランザクション内で渡すrepo束
type txReposStub struct {
	meds   *AdjMedicineRepoMock
	ledger *AdjLedgerRepoMock
	audits *AdjAuditRepoMock
}

func (s *txReposStub) Medicines() repo.MedicineRepository { return s.meds }
func (s *txReposStub) Ledger() repo.LedgerRepository      { return s.ledger }
func (s *txReposStub) AuditLogs() repo.AuditLogRepository { return s.audits }

// Tx開始/commit/rollbackの代役。errsが残っている間はfnを呼ばずにcommit失敗を装う
// （直列化失敗はcommit時に出ることがあるため）。
type txManagerStub struct {
	repos repo.TxRepos
	errs  []error
	calls int
}

func (m *txManagerStub) WithinSerializableTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return fn(m.repos)
}

func newAdjustmentFixture() (*txManagerStub, *AdjMedicineRepoMock, *AdjLedgerRepoMock, *AdjAuditRepoMock) {
	meds := new(AdjMedicineRepoMock)
	ledger := new(AdjLedgerRepoMock)
	audits := new(AdjAuditRepoMock)
	tx := &txManagerStub{repos: &txReposStub{meds: meds, ledger: ledger, audits: audits}}
	return tx, meds, ledger, audits
}

// =====================
// Adjust: 入力検証
// =====================

func TestAdjustmentUsecase_Adjust_ZeroDelta(t *testing.T) {
	tx, meds, ledger, _ := newAdjustmentFixture()
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	_, err := uc.Adjust(context.Background(), 1, 1, usecase.AdjustStockInput{ChangeAmount: 0})
	assertErrContains(t, err, "change_amount must be non-zero")

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 400, he.Status)
	assert.Equal(t, usecase.CodeInvalidInput, he.Code)

	// delta=0はトランザクション自体を開かない
	assert.Equal(t, 0, tx.calls)
}

func TestAdjustmentUsecase_Adjust_InvalidMedicineID(t *testing.T) {
	tx, meds, ledger, _ := newAdjustmentFixture()
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	_, err := uc.Adjust(context.Background(), 1, 0, usecase.AdjustStockInput{ChangeAmount: 5})
	assertErrContains(t, err, "invalid medicine id")
	assert.Equal(t, 0, tx.calls)
}

func TestAdjustmentUsecase_Adjust_Unauthorized(t *testing.T) {
	tx, meds, ledger, _ := newAdjustmentFixture()
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	_, err := uc.Adjust(context.Background(), 0, 1, usecase.AdjustStockInput{ChangeAmount: 5})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 401, he.Status)
	assert.Equal(t, 0, tx.calls)
}

// =====================
// Adjust: 業務エラー
// =====================

func TestAdjustmentUsecase_Adjust_NotFound(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, _ := newAdjustmentFixture()
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	ledger.On("QuantityForUpdate", mock.Anything, int64(999)).Return(int64(0), repo.ErrNotFound)

	_, err := uc.Adjust(ctx, 1, 999, usecase.AdjustStockInput{ChangeAmount: -1})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 404, he.Status)
	assert.Equal(t, usecase.CodeNotFound, he.Code)

	// 業務エラーはリトライしない
	assert.Equal(t, 1, tx.calls)
}

func TestAdjustmentUsecase_Adjust_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, _ := newAdjustmentFixture()
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	// 在庫5に対して-10
	ledger.On("QuantityForUpdate", mock.Anything, int64(1)).Return(int64(5), nil)

	_, err := uc.Adjust(ctx, 1, 1, usecase.AdjustStockInput{ChangeAmount: -10})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 400, he.Status)
	assert.Equal(t, usecase.CodeInsufficientStock, he.Code)

	// quantityも履歴も書かれていない
	ledger.AssertNotCalled(t, "SetQuantity", mock.Anything, mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "AppendEntry", mock.Anything, mock.Anything)
	assert.Equal(t, 1, tx.calls)
}

// =====================
// Adjust: 成功
// =====================

func TestAdjustmentUsecase_Adjust_Success(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, audits := newAdjustmentFixture()
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	// 在庫10に対して-5 → 5
	ledger.On("QuantityForUpdate", mock.Anything, int64(1)).Return(int64(10), nil)
	ledger.On("SetQuantity", mock.Anything, int64(1), int64(5)).Return(nil)
	ledger.On("AppendEntry", mock.Anything, mock.MatchedBy(func(e model.StockHistory) bool {
		return e.MedicineID == 1 && e.ChangeAmount == -5 && e.Reason == "damaged" && e.ChangedBy == "tanaka"
	})).Return(nil)
	audits.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionAdjustStock && l.ResourceID == 1 &&
			l.BeforeJSON == `{"quantity":10}` && l.AfterJSON == `{"quantity":5}`
	})).Return(nil)
	meds.On("FindByID", mock.Anything, int64(1)).Return(model.Medicine{ID: 1, SKU: "MED-001", Name: "Aspirin", Quantity: 10}, nil)

	out, err := uc.Adjust(ctx, 7, 1, usecase.AdjustStockInput{
		ChangeAmount: -5,
		Reason:       " damaged ",
		ChangedBy:    "tanaka",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(5), out.Quantity)
	assert.Equal(t, "MED-001", out.SKU)

	// 履歴は1件だけ
	ledger.AssertNumberOfCalls(t, "AppendEntry", 1)
	audits.AssertExpectations(t)
}

// =====================
// Adjust: リトライ
// =====================

func TestAdjustmentUsecase_Adjust_RetriesSerializationFailure(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, audits := newAdjustmentFixture()

	// 1回目はcommitで40001、2回目で成功
	tx.errs = []error{&pgconn.PgError{Code: "40001"}}
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	ledger.On("QuantityForUpdate", mock.Anything, int64(1)).Return(int64(10), nil)
	ledger.On("SetQuantity", mock.Anything, int64(1), int64(13)).Return(nil)
	ledger.On("AppendEntry", mock.Anything, mock.Anything).Return(nil)
	audits.On("Create", mock.Anything, mock.Anything).Return(nil)
	meds.On("FindByID", mock.Anything, int64(1)).Return(model.Medicine{ID: 1, Quantity: 10}, nil)

	out, err := uc.Adjust(ctx, 1, 1, usecase.AdjustStockInput{ChangeAmount: 3})

	assert.NoError(t, err)
	assert.Equal(t, int64(13), out.Quantity)
	assert.Equal(t, 2, tx.calls)
}

func TestAdjustmentUsecase_Adjust_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, _ := newAdjustmentFixture()

	// 全部40001。maxRetries=2なので計3回試して諦める
	tx.errs = []error{
		&pgconn.PgError{Code: "40001"},
		&pgconn.PgError{Code: "40P01"},
		&pgconn.PgError{Code: "40001"},
	}
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 2, 1)

	_, err := uc.Adjust(ctx, 1, 1, usecase.AdjustStockInput{ChangeAmount: 3})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 409, he.Status)
	assert.Equal(t, usecase.CodeConflict, he.Code)
	assert.Equal(t, 3, tx.calls)
}

func TestAdjustmentUsecase_Adjust_LockTimeoutNoRetry(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, _ := newAdjustmentFixture()

	// 55P03はリトライせず即conflict
	tx.errs = []error{&pgconn.PgError{Code: "55P03"}}
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	_, err := uc.Adjust(ctx, 1, 1, usecase.AdjustStockInput{ChangeAmount: 3})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 409, he.Status)
	assert.Equal(t, usecase.CodeConflict, he.Code)
	assert.Equal(t, 1, tx.calls)
}

func TestAdjustmentUsecase_Adjust_UnknownDBError(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, _ := newAdjustmentFixture()

	tx.errs = []error{&pgconn.PgError{Code: "57P01"}}
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	_, err := uc.Adjust(ctx, 1, 1, usecase.AdjustStockInput{ChangeAmount: 3})

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 500, he.Status)
	assert.Equal(t, usecase.CodeBackendFailure, he.Code)
}

// =====================
// History
// =====================

func TestAdjustmentUsecase_History_NotFound(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, _ := newAdjustmentFixture()
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	meds.On("FindByID", mock.Anything, int64(42)).Return(model.Medicine{}, repo.ErrNotFound)

	_, err := uc.History(ctx, 42)

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 404, he.Status)
}

func TestAdjustmentUsecase_History_Success(t *testing.T) {
	ctx := context.Background()
	tx, meds, ledger, _ := newAdjustmentFixture()
	uc := usecase.NewAdjustmentUsecase(tx, meds, ledger, nil, 3, 1)

	meds.On("FindByID", mock.Anything, int64(1)).Return(model.Medicine{ID: 1}, nil)
	ledger.On("ListByMedicineID", mock.Anything, int64(1)).Return([]model.StockHistory{
		{ID: 2, MedicineID: 1, ChangeAmount: -3},
		{ID: 1, MedicineID: 1, ChangeAmount: 10},
	}, nil)

	entries, err := uc.History(ctx, 1)

	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(-3), entries[0].ChangeAmount)

	// 履歴の読み取りはトランザクションを開かない
	assert.Equal(t, 0, tx.calls)
}
