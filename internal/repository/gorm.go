package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

const (
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
)

// GormStore is the PostgreSQL Store.
type GormStore struct {
	gormReader
	lockTimeout time.Duration
}

func NewGormStore(db *gorm.DB, lockTimeout time.Duration) *GormStore {
	return &GormStore{gormReader: gormReader{db: db}, lockTimeout: lockTimeout}
}

// WithTx runs fn in a transaction whose lock waits are bounded by lock_timeout.
func (s *GormStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := db.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&gormTx{gormReader{db: db}})
	})
	return translate(err)
}

// translate maps driver errors onto the application taxonomy. Application
// errors pass through untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgLockNotAvailable || pgErr.Code == pgDeadlockDetected) {
		return apperrors.ErrLockTimeout.Wrap(err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrRecordNotFound.Wrap(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ErrLockTimeout.Wrap(err)
	}
	return apperrors.ErrDatabaseQuery.Wrap(err)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrRecordNotFound.Withf(format, args...)
	}
	return translate(err)
}

type gormReader struct {
	db *gorm.DB
}

func (r gormReader) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "product %s", id)
	}
	return &p, nil
}

func (r gormReader) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, translate(err)
	}
	out := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, apperrors.ErrRecordNotFound.Withf("product %s", id)
		}
	}
	return out, nil
}

func (r gormReader) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("sku").Find(&products).Error; err != nil {
		return nil, translate(err)
	}
	return products, nil
}

func (r gormReader) GetWarehouse(ctx context.Context, id uuid.UUID) (*models.Warehouse, error) {
	var w models.Warehouse
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "warehouse %s", id)
	}
	return &w, nil
}

func (r gormReader) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	var warehouses []models.Warehouse
	if err := r.db.WithContext(ctx).Order("code").Find(&warehouses).Error; err != nil {
		return nil, translate(err)
	}
	return warehouses, nil
}

func (r gormReader) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "customer %s", id)
	}
	return &c, nil
}

func (r gormReader) GetInventory(ctx context.Context, productID, warehouseID uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		First(&inv).Error
	if err != nil {
		return nil, notFound(err, "inventory for product %s in warehouse %s", productID, warehouseID)
	}
	return &inv, nil
}

func (r gormReader) ListInventoryByProduct(ctx context.Context, productID uuid.UUID) ([]models.Inventory, error) {
	var rows []models.Inventory
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r gormReader) GetReservation(ctx context.Context, reference string) (*models.StockReservation, error) {
	var res models.StockReservation
	if err := r.db.WithContext(ctx).First(&res, "reference = ?", reference).Error; err != nil {
		return nil, notFound(err, "reservation %s", reference)
	}
	return &res, nil
}

func (r gormReader) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	q := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.ReservationPending, now).
		Order("expires_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (r gormReader) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&o, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "order %s", id)
	}
	return &o, nil
}

func (r gormReader) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	filter = filter.Normalized()

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var orders []models.Order
	if err := query.
		Preload("Items").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, translate(err)
	}
	return orders, total, nil
}

func (r gormReader) ListTransfers(ctx context.Context, productID uuid.UUID) ([]models.StockTransfer, error) {
	var rows []models.StockTransfer
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

type gormTx struct {
	gormReader
}

func (t *gormTx) forUpdate(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *gormTx) LockInventory(ctx context.Context, productID, warehouseID uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	err := t.forUpdate(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		First(&inv).Error
	if err != nil {
		return nil, notFound(err, "inventory for product %s in warehouse %s", productID, warehouseID)
	}
	return &inv, nil
}

func (t *gormTx) LockReservation(ctx context.Context, reference string) (*models.StockReservation, error) {
	var res models.StockReservation
	if err := t.forUpdate(ctx).First(&res, "reference = ?", reference).Error; err != nil {
		return nil, notFound(err, "reservation %s", reference)
	}
	return &res, nil
}

func (t *gormTx) LockOrderReservations(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	err := t.forUpdate(ctx).
		Where("order_id = ? AND status = ?", orderID, models.ReservationPending).
		Order("reference").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (t *gormTx) LockCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := t.forUpdate(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "customer %s", id)
	}
	return &c, nil
}

func (t *gormTx) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := t.forUpdate(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "order %s", id)
	}
	if err := t.db.WithContext(ctx).Where("order_id = ?", id).Order("created_at").Find(&o.Items).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (t *gormTx) NextOrderSequence(ctx context.Context, period string) (int, error) {
	seed := models.OrderSequence{Period: period}
	if err := t.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, translate(err)
	}

	var seq models.OrderSequence
	if err := t.forUpdate(ctx).First(&seq, "period = ?", period).Error; err != nil {
		return 0, translate(err)
	}
	seq.LastValue++
	if err := t.db.WithContext(ctx).Save(&seq).Error; err != nil {
		return 0, translate(err)
	}
	return seq.LastValue, nil
}

func (t *gormTx) SaveInventory(ctx context.Context, inv *models.Inventory) error {
	return translate(t.db.WithContext(ctx).Save(inv).Error)
}

func (t *gormTx) SaveReservation(ctx context.Context, r *models.StockReservation) error {
	return translate(t.db.WithContext(ctx).Save(r).Error)
}

func (t *gormTx) SaveCustomer(ctx context.Context, c *models.Customer) error {
	return translate(t.db.WithContext(ctx).Save(c).Error)
}

func (t *gormTx) SaveOrder(ctx context.Context, o *models.Order) error {
	return translate(t.db.WithContext(ctx).Omit(clause.Associations).Save(o).Error)
}

func (t *gormTx) CreateReservation(ctx context.Context, r *models.StockReservation) error {
	assignID(&r.ID)
	return translate(t.db.WithContext(ctx).Create(r).Error)
}

func (t *gormTx) CreateOrder(ctx context.Context, o *models.Order) error {
	assignID(&o.ID)
	return translate(t.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error)
}

func (t *gormTx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	assignID(&item.ID)
	return translate(t.db.WithContext(ctx).Create(item).Error)
}

func (t *gormTx) CreateTransfer(ctx context.Context, st *models.StockTransfer) error {
	assignID(&st.ID)
	return translate(t.db.WithContext(ctx).Create(st).Error)
}

func (t *gormTx) CreateProduct(ctx context.Context, p *models.Product) error {
	assignID(&p.ID)
	return translate(t.db.WithContext(ctx).Create(p).Error)
}

func (t *gormTx) CreateWarehouse(ctx context.Context, w *models.Warehouse) error {
	assignID(&w.ID)
	return translate(t.db.WithContext(ctx).Create(w).Error)
}

func (t *gormTx) CreateCustomer(ctx context.Context, c *models.Customer) error {
	assignID(&c.ID)
	return translate(t.db.WithContext(ctx).Create(c).Error)
}

func (t *gormTx) CreateInventory(ctx context.Context, inv *models.Inventory) error {
	assignID(&inv.ID)
	return translate(t.db.WithContext(ctx).Create(inv).Error)
}
