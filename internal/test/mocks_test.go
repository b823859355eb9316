package test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/models"
	"stock-ledger-service/internal/repository"
)

// mockTx implements interfaces.Tx for tests that drive the commit path
type mockTx struct {
	committed  bool
	rolledBack bool
}

func (t *mockTx) Commit() error {
	t.committed = true
	return nil
}

func (t *mockTx) Rollback() error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// MockItemRepository implements interfaces.ItemRepository
type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) BeginTx(ctx context.Context) (interfaces.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(interfaces.Tx), args.Error(1)
}

func (m *MockItemRepository) Get(ctx context.Context, productID string) (*models.InventoryItem, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

func (m *MockItemRepository) InsertIfAbsent(ctx context.Context, tx interfaces.Tx, item *models.InventoryItem) error {
	args := m.Called(ctx, tx, item)
	return args.Error(0)
}

func (m *MockItemRepository) ConditionalUpdate(ctx context.Context, tx interfaces.Tx, productID string, expectedQuantity, newQuantity int, newLocation *string) (*models.InventoryItem, error) {
	args := m.Called(ctx, tx, productID, expectedQuantity, newQuantity, newLocation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

func (m *MockItemRepository) List(ctx context.Context, productIDFilter string, offset, limit int) ([]models.InventoryItem, int, error) {
	args := m.Called(ctx, productIDFilter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]models.InventoryItem), args.Int(1), args.Error(2)
}

// MockMovementLedger implements interfaces.MovementLedger
type MockMovementLedger struct {
	mock.Mock
}

func (m *MockMovementLedger) Append(ctx context.Context, tx interfaces.Tx, movement *models.StockMovement) error {
	args := m.Called(ctx, tx, movement)
	return args.Error(0)
}

func (m *MockMovementLedger) ListByProduct(ctx context.Context, productID string) ([]models.StockMovement, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StockMovement), args.Error(1)
}

// MockOutboxStore implements interfaces.OutboxStore
type MockOutboxStore struct {
	mock.Mock
}

func (m *MockOutboxStore) InsertEvent(ctx context.Context, tx interfaces.Tx, eventType, key string, payload interface{}) error {
	args := m.Called(ctx, tx, eventType, key, payload)
	return args.Error(0)
}

// MockCacheRepository implements interfaces.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) GetItem(ctx context.Context, productID string) (*models.InventoryItem, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

func (m *MockCacheRepository) SetItem(ctx context.Context, item *models.InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockCacheRepository) DeleteItem(ctx context.Context, productID string) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockCacheRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// fakeStore is an in-memory implementation of the storage contracts with
// real compare-and-set semantics. It backs the scenario and contention
// tests where mock choreography would obscure what is being verified.
// A transaction holds txMu from begin to commit, mirroring how a row lock
// serializes the update and the movement insert of concurrent writers.
type fakeStore struct {
	txMu      sync.Mutex
	mu        sync.Mutex
	items     map[string]models.InventoryItem
	movements []models.StockMovement
	nextPos   int64
	staged    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]models.InventoryItem)}
}

type fakeTx struct {
	once    sync.Once
	release func()
}

func (t *fakeTx) Commit() error {
	t.once.Do(t.release)
	return nil
}

func (t *fakeTx) Rollback() error {
	t.once.Do(t.release)
	return nil
}

func (f *fakeStore) BeginTx(ctx context.Context) (interfaces.Tx, error) {
	f.txMu.Lock()
	return &fakeTx{release: f.txMu.Unlock}, nil
}

func (f *fakeStore) Get(ctx context.Context, productID string) (*models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[productID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (f *fakeStore) InsertIfAbsent(ctx context.Context, tx interfaces.Tx, item *models.InventoryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.items[item.ProductID]; ok {
		return &models.DuplicateProductError{ProductID: item.ProductID}
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	f.items[item.ProductID] = *item
	return nil
}

func (f *fakeStore) ConditionalUpdate(ctx context.Context, tx interfaces.Tx, productID string, expectedQuantity, newQuantity int, newLocation *string) (*models.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[productID]
	if !ok || item.Quantity != expectedQuantity {
		return nil, repository.ErrQuantityConflict
	}

	item.Quantity = newQuantity
	if newLocation != nil {
		item.WarehouseLocation = *newLocation
	}
	item.UpdatedAt = time.Now().UTC()
	f.items[productID] = item
	return &item, nil
}

func (f *fakeStore) List(ctx context.Context, productIDFilter string, offset, limit int) ([]models.InventoryItem, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matched := []models.InventoryItem{}
	for _, item := range f.items {
		if productIDFilter == "" || item.ProductID == productIDFilter {
			matched = append(matched, item)
		}
	}

	total := len(matched)
	if offset >= total {
		return []models.InventoryItem{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// Append assigns positions in call order, like the database sequence
// does while the row lock is held. A preset created_at is kept so tests
// can model transaction timestamps that lag the commit order.
func (f *fakeStore) Append(ctx context.Context, tx interfaces.Tx, movement *models.StockMovement) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextPos++
	movement.Position = f.nextPos
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	f.movements = append(f.movements, *movement)
	return nil
}

func (f *fakeStore) ListByProduct(ctx context.Context, productID string) ([]models.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := []models.StockMovement{}
	for _, m := range f.movements {
		if m.ProductID == productID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, tx interfaces.Tx, eventType, key string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.staged++
	return nil
}

func (f *fakeStore) stagedEvents() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.staged
}
