package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

func setupMockDB(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(gormDB, 2*time.Second), mock
}

var inventoryColumns = []string{"id", "product_id", "warehouse_id", "quantity", "reserved_quantity", "available_quantity"}

func TestGormLockInventorySetsLockTimeoutAndLocksRow(t *testing.T) {
	store, mock := setupMockDB(t)
	id, productID, warehouseID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = '2000ms'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "inventory" WHERE product_id = \$1 AND warehouse_id = \$2 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(inventoryColumns).AddRow(id.String(), productID.String(), warehouseID.String(), 10, 4, 6))
	mock.ExpectCommit()

	var got *models.Inventory
	err := store.WithTx(context.Background(), func(tx Tx) error {
		var err error
		got, err = tx.LockInventory(context.Background(), productID, warehouseID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 6, got.AvailableQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormLockWaitTimeoutIsRetryable(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "customers" .*FOR UPDATE`).
		WillReturnError(&pgconn.PgError{Code: pgLockNotAvailable, Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		_, err := tx.LockCustomer(context.Background(), uuid.New())
		return err
	})
	assert.True(t, errors.Is(err, apperrors.ErrLockTimeout), err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormMissingRowsAreNotFound(t *testing.T) {
	store, mock := setupMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "warehouses" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := store.GetWarehouse(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrRecordNotFound), err)

	found, missing := uuid.New(), uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE id IN \(\$1,\$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sku"}).AddRow(found.String(), "SF-MAX-20W50"))
	_, err = store.GetProducts(ctx, []uuid.UUID{found, missing})
	assert.True(t, errors.Is(err, apperrors.ErrRecordNotFound), err)
	assert.Contains(t, err.Error(), missing.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormApplicationErrorsRollBackUntouched(t *testing.T) {
	store, mock := setupMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(Tx) error {
		return apperrors.ErrInsufficientStock.Withf("need 6, have 4")
	})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientStock))
	assert.Contains(t, err.Error(), "need 6, have 4")
	assert.NoError(t, mock.ExpectationsWereMet())
}
