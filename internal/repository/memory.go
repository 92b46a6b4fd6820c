package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Harrison-Muraya/L-SalesPro/internal/models"
	apperrors "github.com/Harrison-Muraya/L-SalesPro/pkg/errors"
)

const defaultLockTimeout = 5 * time.Second

// MemoryStore is an in-process Store with the same locking contract as
// GormStore: exclusive row locks with a bounded wait, all-or-nothing commits.
// Writes are applied in place and undone on rollback, so unlocked readers in
// other transactions can observe uncommitted values.
type MemoryStore struct {
	memReader

	mu           sync.RWMutex
	products     map[uuid.UUID]models.Product
	warehouses   map[uuid.UUID]models.Warehouse
	customers    map[uuid.UUID]models.Customer
	inventory    map[InventoryKey]models.Inventory
	reservations map[string]models.StockReservation
	orders       map[uuid.UUID]models.Order
	items        map[uuid.UUID][]models.OrderItem
	sequences    map[string]int
	transfers    []models.StockTransfer

	lockMu      sync.Mutex
	slots       map[string]chan struct{}
	lockTimeout time.Duration
}

func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	s := &MemoryStore{
		products:     map[uuid.UUID]models.Product{},
		warehouses:   map[uuid.UUID]models.Warehouse{},
		customers:    map[uuid.UUID]models.Customer{},
		inventory:    map[InventoryKey]models.Inventory{},
		reservations: map[string]models.StockReservation{},
		orders:       map[uuid.UUID]models.Order{},
		items:        map[uuid.UUID][]models.OrderItem{},
		sequences:    map[string]int{},
		slots:        map[string]chan struct{}{},
		lockTimeout:  lockTimeout,
	}
	s.memReader = memReader{s: s}
	return s
}

// WithTx runs fn holding whatever locks it takes until it returns. An error
// or panic replays the undo log in reverse before the locks are released.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx := &memTx{memReader: memReader{s: s}, held: map[string]bool{}}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		tx.rollback()
		return err
	}
	tx.release()
	return nil
}

func (s *MemoryStore) slot(key string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.slots[key] = ch
	}
	return ch
}

func inventoryLockKey(productID, warehouseID uuid.UUID) string {
	return "inventory:" + warehouseID.String() + ":" + productID.String()
}

func reservationLockKey(reference string) string { return "reservation:" + reference }
func customerLockKey(id uuid.UUID) string        { return "customer:" + id.String() }
func orderLockKey(id uuid.UUID) string           { return "order:" + id.String() }
func sequenceLockKey(period string) string       { return "sequence:" + period }

type memReader struct {
	s *MemoryStore
}

func (r memReader) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound.Withf("product %s", id)
	}
	return &p, nil
}

func (r memReader) GetProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[uuid.UUID]*models.Product, len(ids))
	for _, id := range ids {
		p, ok := r.s.products[id]
		if !ok {
			return nil, apperrors.ErrRecordNotFound.Withf("product %s", id)
		}
		out[id] = &p
	}
	return out, nil
}

func (r memReader) ListProducts(_ context.Context) ([]models.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r memReader) GetWarehouse(_ context.Context, id uuid.UUID) (*models.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.warehouses[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound.Withf("warehouse %s", id)
	}
	return &w, nil
}

func (r memReader) ListWarehouses(_ context.Context) ([]models.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Warehouse, 0, len(r.s.warehouses))
	for _, w := range r.s.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r memReader) GetCustomer(_ context.Context, id uuid.UUID) (*models.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.customers[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound.Withf("customer %s", id)
	}
	return &c, nil
}

func (r memReader) GetInventory(_ context.Context, productID, warehouseID uuid.UUID) (*models.Inventory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.inventory[InventoryKey{WarehouseID: warehouseID, ProductID: productID}]
	if !ok {
		return nil, apperrors.ErrRecordNotFound.Withf("inventory for product %s in warehouse %s", productID, warehouseID)
	}
	return &inv, nil
}

func (r memReader) ListInventoryByProduct(_ context.Context, productID uuid.UUID) ([]models.Inventory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Inventory
	for _, inv := range r.s.inventory {
		if inv.ProductID == productID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID.String() < out[j].WarehouseID.String() })
	return out, nil
}

func (r memReader) GetReservation(_ context.Context, reference string) (*models.StockReservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res, ok := r.s.reservations[reference]
	if !ok {
		return nil, apperrors.ErrRecordNotFound.Withf("reservation %s", reference)
	}
	return &res, nil
}

func (r memReader) ListExpiredReservations(_ context.Context, now time.Time, limit int) ([]models.StockReservation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.StockReservation
	for _, res := range r.s.reservations {
		if res.Status == models.ReservationPending && res.ExpiresAt.Before(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memReader) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperrors.ErrRecordNotFound.Withf("order %s", id)
	}
	o.Items = append([]models.OrderItem(nil), r.s.items[id]...)
	return &o, nil
}

func (r memReader) ListOrders(_ context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	filter = filter.Normalized()

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []models.Order
	for _, o := range r.s.orders {
		if filter.CustomerID != nil && o.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		o.Items = append([]models.OrderItem(nil), r.s.items[o.ID]...)
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := min((filter.Page-1)*filter.Limit, len(matched))
	end := min(start+filter.Limit, len(matched))
	return matched[start:end], total, nil
}

func (r memReader) ListTransfers(_ context.Context, productID uuid.UUID) ([]models.StockTransfer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.StockTransfer
	for i := len(r.s.transfers) - 1; i >= 0; i-- {
		if r.s.transfers[i].ProductID == productID {
			out = append(out, r.s.transfers[i])
		}
	}
	return out, nil
}

type memTx struct {
	memReader
	held map[string]bool
	undo []func()
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	timer := time.NewTimer(t.s.lockTimeout)
	defer timer.Stop()

	select {
	case t.s.slot(key) <- struct{}{}:
		t.held[key] = true
		return nil
	case <-timer.C:
		return apperrors.ErrLockTimeout.Withf("waiting for %s", key)
	case <-ctx.Done():
		return apperrors.ErrLockTimeout.Wrap(ctx.Err())
	}
}

func (t *memTx) requireLock(key string) error {
	if !t.held[key] {
		return apperrors.ErrInvariantViolation.Withf("write to %s without holding its lock", key)
	}
	return nil
}

func (t *memTx) rollback() {
	t.s.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.s.mu.Unlock()
	t.release()
}

func (t *memTx) release() {
	for key := range t.held {
		<-t.s.slot(key)
	}
	t.held = map[string]bool{}
}

func (t *memTx) LockInventory(ctx context.Context, productID, warehouseID uuid.UUID) (*models.Inventory, error) {
	if _, err := t.GetInventory(ctx, productID, warehouseID); err != nil {
		return nil, err
	}
	if err := t.lock(ctx, inventoryLockKey(productID, warehouseID)); err != nil {
		return nil, err
	}
	return t.GetInventory(ctx, productID, warehouseID)
}

func (t *memTx) LockReservation(ctx context.Context, reference string) (*models.StockReservation, error) {
	if _, err := t.GetReservation(ctx, reference); err != nil {
		return nil, err
	}
	if err := t.lock(ctx, reservationLockKey(reference)); err != nil {
		return nil, err
	}
	return t.GetReservation(ctx, reference)
}

func (t *memTx) LockOrderReservations(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	t.s.mu.RLock()
	var refs []string
	for ref, res := range t.s.reservations {
		if res.OrderID != nil && *res.OrderID == orderID && res.Status == models.ReservationPending {
			refs = append(refs, ref)
		}
	}
	t.s.mu.RUnlock()
	sort.Strings(refs)

	var out []models.StockReservation
	for _, ref := range refs {
		res, err := t.LockReservation(ctx, ref)
		if err != nil {
			return nil, err
		}
		if res.Status == models.ReservationPending {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (t *memTx) LockCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	if _, err := t.GetCustomer(ctx, id); err != nil {
		return nil, err
	}
	if err := t.lock(ctx, customerLockKey(id)); err != nil {
		return nil, err
	}
	return t.GetCustomer(ctx, id)
}

func (t *memTx) LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if _, err := t.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	if err := t.lock(ctx, orderLockKey(id)); err != nil {
		return nil, err
	}
	return t.GetOrder(ctx, id)
}

func (t *memTx) NextOrderSequence(ctx context.Context, period string) (int, error) {
	if err := t.lock(ctx, sequenceLockKey(period)); err != nil {
		return 0, err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev, existed := t.s.sequences[period]
	t.s.sequences[period] = prev + 1
	t.undo = append(t.undo, func() {
		if existed {
			t.s.sequences[period] = prev
		} else {
			delete(t.s.sequences, period)
		}
	})
	return prev + 1, nil
}

func (t *memTx) SaveInventory(_ context.Context, inv *models.Inventory) error {
	if err := t.requireLock(inventoryLockKey(inv.ProductID, inv.WarehouseID)); err != nil {
		return err
	}
	key := InventoryKey{WarehouseID: inv.WarehouseID, ProductID: inv.ProductID}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev, ok := t.s.inventory[key]
	if !ok {
		return apperrors.ErrRecordNotFound.Withf("inventory for product %s in warehouse %s", inv.ProductID, inv.WarehouseID)
	}
	inv.UpdatedAt = time.Now()
	t.s.inventory[key] = *inv
	t.undo = append(t.undo, func() { t.s.inventory[key] = prev })
	return nil
}

func (t *memTx) SaveReservation(_ context.Context, r *models.StockReservation) error {
	if err := t.requireLock(reservationLockKey(r.Reference)); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	ref := r.Reference
	prev, ok := t.s.reservations[ref]
	if !ok {
		return apperrors.ErrRecordNotFound.Withf("reservation %s", ref)
	}
	r.UpdatedAt = time.Now()
	t.s.reservations[ref] = *r
	t.undo = append(t.undo, func() { t.s.reservations[ref] = prev })
	return nil
}

func (t *memTx) SaveCustomer(_ context.Context, c *models.Customer) error {
	if err := t.requireLock(customerLockKey(c.ID)); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev, ok := t.s.customers[c.ID]
	if !ok {
		return apperrors.ErrRecordNotFound.Withf("customer %s", c.ID)
	}
	c.UpdatedAt = time.Now()
	t.s.customers[c.ID] = *c
	id := c.ID
	t.undo = append(t.undo, func() { t.s.customers[id] = prev })
	return nil
}

func (t *memTx) SaveOrder(_ context.Context, o *models.Order) error {
	if err := t.requireLock(orderLockKey(o.ID)); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	prev, ok := t.s.orders[o.ID]
	if !ok {
		return apperrors.ErrRecordNotFound.Withf("order %s", o.ID)
	}
	row := *o
	row.Items = nil
	row.UpdatedAt = time.Now()
	o.UpdatedAt = row.UpdatedAt
	t.s.orders[o.ID] = row
	id := o.ID
	t.undo = append(t.undo, func() { t.s.orders[id] = prev })
	return nil
}

func duplicate(format string, args ...any) error {
	return apperrors.ErrDatabaseQuery.Wrap(fmt.Errorf("duplicate key: "+format, args...))
}

func stamp(created *time.Time) {
	if created.IsZero() {
		*created = time.Now()
	}
}

func (t *memTx) CreateReservation(ctx context.Context, r *models.StockReservation) error {
	assignID(&r.ID)
	if err := t.lock(ctx, reservationLockKey(r.Reference)); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	ref := r.Reference
	if _, exists := t.s.reservations[ref]; exists {
		return duplicate("reservation reference %s", ref)
	}
	stamp(&r.CreatedAt)
	r.UpdatedAt = r.CreatedAt
	t.s.reservations[ref] = *r
	t.undo = append(t.undo, func() { delete(t.s.reservations, ref) })
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *models.Order) error {
	assignID(&o.ID)
	if err := t.lock(ctx, orderLockKey(o.ID)); err != nil {
		return err
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, existing := range t.s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return duplicate("order number %s", o.OrderNumber)
		}
	}
	stamp(&o.CreatedAt)
	o.UpdatedAt = o.CreatedAt
	row := *o
	row.Items = nil
	t.s.orders[o.ID] = row
	id := o.ID
	t.undo = append(t.undo, func() { delete(t.s.orders, id) })
	return nil
}

func (t *memTx) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	assignID(&item.ID)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.orders[item.OrderID]; !ok {
		return apperrors.ErrRecordNotFound.Withf("order %s", item.OrderID)
	}
	stamp(&item.CreatedAt)
	orderID := item.OrderID
	prev := t.s.items[orderID]
	t.s.items[orderID] = append(append([]models.OrderItem(nil), prev...), *item)
	t.undo = append(t.undo, func() {
		if prev == nil {
			delete(t.s.items, orderID)
		} else {
			t.s.items[orderID] = prev
		}
	})
	return nil
}

func (t *memTx) CreateTransfer(_ context.Context, st *models.StockTransfer) error {
	assignID(&st.ID)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	stamp(&st.CreatedAt)
	n := len(t.s.transfers)
	t.s.transfers = append(t.s.transfers, *st)
	t.undo = append(t.undo, func() { t.s.transfers = t.s.transfers[:n] })
	return nil
}

func (t *memTx) CreateProduct(_ context.Context, p *models.Product) error {
	assignID(&p.ID)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, existing := range t.s.products {
		if existing.SKU == p.SKU {
			return duplicate("product sku %s", p.SKU)
		}
	}
	stamp(&p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	t.s.products[p.ID] = *p
	id := p.ID
	t.undo = append(t.undo, func() { delete(t.s.products, id) })
	return nil
}

func (t *memTx) CreateWarehouse(_ context.Context, w *models.Warehouse) error {
	assignID(&w.ID)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, existing := range t.s.warehouses {
		if existing.Code == w.Code {
			return duplicate("warehouse code %s", w.Code)
		}
	}
	stamp(&w.CreatedAt)
	w.UpdatedAt = w.CreatedAt
	t.s.warehouses[w.ID] = *w
	id := w.ID
	t.undo = append(t.undo, func() { delete(t.s.warehouses, id) })
	return nil
}

func (t *memTx) CreateCustomer(_ context.Context, c *models.Customer) error {
	assignID(&c.ID)
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	stamp(&c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	t.s.customers[c.ID] = *c
	id := c.ID
	t.undo = append(t.undo, func() { delete(t.s.customers, id) })
	return nil
}

func (t *memTx) CreateInventory(_ context.Context, inv *models.Inventory) error {
	assignID(&inv.ID)
	key := InventoryKey{WarehouseID: inv.WarehouseID, ProductID: inv.ProductID}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, exists := t.s.inventory[key]; exists {
		return duplicate("inventory for product %s in warehouse %s", inv.ProductID, inv.WarehouseID)
	}
	stamp(&inv.CreatedAt)
	inv.UpdatedAt = inv.CreatedAt
	t.s.inventory[key] = *inv
	t.undo = append(t.undo, func() { delete(t.s.inventory, key) })
	return nil
}
