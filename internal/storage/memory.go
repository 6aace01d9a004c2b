package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/afroash/holdtrack/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps accounts, devices and holds in process memory.
// WithinDevice serialises all units of work and rolls back on error.
type MemoryStore struct {
	mutex sync.RWMutex
	state *memState
}

type memState struct {
	accounts   map[string]models.Account
	devices    map[string]models.Device
	holds      map[int64]*models.Hold
	nextHoldID int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func newMemState() *memState {
	return &memState{
		accounts:   make(map[string]models.Account),
		devices:    make(map[string]models.Device),
		holds:      make(map[int64]*models.Hold),
		nextHoldID: 1,
	}
}

// Migrate is a no-op for the memory store
func (ms *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the memory store
func (ms *MemoryStore) Close() error { return nil }

// WithinDevice runs fn under the store's write lock. Writes are journaled
// and undone when fn fails or panics.
func (ms *MemoryStore) WithinDevice(ctx context.Context, deviceID string, fn func(repo Repository) error) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	repo := &memRepo{state: ms.state, journaled: true}
	committed := false
	defer func() {
		if !committed {
			repo.rollback()
		}
	}()

	if err := fn(repo); err != nil {
		return err
	}
	committed = true
	return nil
}

func (ms *MemoryStore) read() *memRepo {
	return &memRepo{state: ms.state}
}

// CreateAccount inserts an account
func (ms *MemoryStore) CreateAccount(ctx context.Context, id string, apiKey *string, createdAt *time.Time) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.read().CreateAccount(ctx, id, apiKey, createdAt)
}

// FindAccount returns the account or nil
func (ms *MemoryStore) FindAccount(ctx context.Context, id string) (*models.Account, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return ms.read().FindAccount(ctx, id)
}

// DeleteAccount removes an account
func (ms *MemoryStore) DeleteAccount(ctx context.Context, id string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.read().DeleteAccount(ctx, id)
}

// CreateDevice inserts a device
func (ms *MemoryStore) CreateDevice(ctx context.Context, id, accountID string, createdAt *time.Time) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.read().CreateDevice(ctx, id, accountID, createdAt)
}

// FindDevice returns the device or nil
func (ms *MemoryStore) FindDevice(ctx context.Context, id string) (*models.Device, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return ms.read().FindDevice(ctx, id)
}

// FindDevicesByAccount lists an account's devices ordered by id
func (ms *MemoryStore) FindDevicesByAccount(ctx context.Context, accountID string) ([]*models.Device, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return ms.read().FindDevicesByAccount(ctx, accountID)
}

// DeleteDevice removes a device
func (ms *MemoryStore) DeleteDevice(ctx context.Context, id string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.read().DeleteDevice(ctx, id)
}

// CreateHold inserts a hold and returns its id
func (ms *MemoryStore) CreateHold(ctx context.Context, hold *models.Hold) (int64, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.read().CreateHold(ctx, hold)
}

// FindHold returns the hold or nil
func (ms *MemoryStore) FindHold(ctx context.Context, id int64) (*models.Hold, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return ms.read().FindHold(ctx, id)
}

// FindHoldsByDevice lists a device's holds ordered by start
func (ms *MemoryStore) FindHoldsByDevice(ctx context.Context, deviceID string) ([]*models.Hold, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return ms.read().FindHoldsByDevice(ctx, deviceID)
}

// FindHoldsByLabel lists every hold referencing label
func (ms *MemoryStore) FindHoldsByLabel(ctx context.Context, label string) ([]*models.Hold, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	return ms.read().FindHoldsByLabel(ctx, label)
}

// SetHoldEnd closes a hold at end
func (ms *MemoryStore) SetHoldEnd(ctx context.Context, id int64, end time.Time) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.read().SetHoldEnd(ctx, id, end)
}

// UpdateHold writes whichever of start and end is non-nil
func (ms *MemoryStore) UpdateHold(ctx context.Context, id int64, start, end *time.Time) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.read().UpdateHold(ctx, id, start, end)
}

// DeleteHold removes a hold
func (ms *MemoryStore) DeleteHold(ctx context.Context, id int64) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.read().DeleteHold(ctx, id)
}

// DeleteOrphanHolds removes holds whose device no longer exists
func (ms *MemoryStore) DeleteOrphanHolds(ctx context.Context) (int64, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	var deleted int64
	for id, h := range ms.state.holds {
		if _, ok := ms.state.devices[h.DeviceID]; !ok {
			delete(ms.state.holds, id)
			deleted++
		}
	}
	return deleted, nil
}

// Stats returns row counts
func (ms *MemoryStore) Stats(ctx context.Context) (*StorageStats, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	stats := &StorageStats{
		Accounts: int64(len(ms.state.accounts)),
		Devices:  int64(len(ms.state.devices)),
		Holds:    int64(len(ms.state.holds)),
	}
	for _, h := range ms.state.holds {
		if h.IsActive() {
			stats.ActiveHolds++
		}
	}
	return stats, nil
}

// Clear removes all data from the store
func (ms *MemoryStore) Clear() {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	ms.state = newMemState()
}

// memRepo implements Repository over a memState without locking
type memRepo struct {
	state     *memState
	journaled bool
	undo      []func()
}

// record queues the inverse of a write just applied
func (r *memRepo) record(inverse func()) {
	if r.journaled {
		r.undo = append(r.undo, inverse)
	}
}

// rollback applies the journal newest first
func (r *memRepo) rollback() {
	for i := len(r.undo) - 1; i >= 0; i-- {
		r.undo[i]()
	}
	r.undo = nil
}

func (r *memRepo) CreateAccount(ctx context.Context, id string, apiKey *string, createdAt *time.Time) error {
	if _, ok := r.state.accounts[id]; ok {
		return fmt.Errorf("insert account: %w", ErrDuplicate)
	}
	r.state.accounts[id] = models.Account{ID: id, APIKey: copyString(apiKey), CreatedAt: utcPtr(createdAt)}
	r.record(func() { delete(r.state.accounts, id) })
	return nil
}

func (r *memRepo) FindAccount(ctx context.Context, id string) (*models.Account, error) {
	account, ok := r.state.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (r *memRepo) DeleteAccount(ctx context.Context, id string) error {
	prev, ok := r.state.accounts[id]
	if !ok {
		return fmt.Errorf("delete account: %w", ErrNotFound)
	}
	delete(r.state.accounts, id)
	r.record(func() { r.state.accounts[id] = prev })
	return nil
}

func (r *memRepo) CreateDevice(ctx context.Context, id, accountID string, createdAt *time.Time) error {
	if _, ok := r.state.devices[id]; ok {
		return fmt.Errorf("insert device: %w", ErrDuplicate)
	}
	r.state.devices[id] = models.Device{ID: id, AccountID: accountID, CreatedAt: utcPtr(createdAt)}
	r.record(func() { delete(r.state.devices, id) })
	return nil
}

func (r *memRepo) FindDevice(ctx context.Context, id string) (*models.Device, error) {
	device, ok := r.state.devices[id]
	if !ok {
		return nil, nil
	}
	return &device, nil
}

func (r *memRepo) FindDevicesByAccount(ctx context.Context, accountID string) ([]*models.Device, error) {
	devices := []*models.Device{}
	for _, d := range r.state.devices {
		if d.AccountID == accountID {
			device := d
			devices = append(devices, &device)
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (r *memRepo) DeleteDevice(ctx context.Context, id string) error {
	prev, ok := r.state.devices[id]
	if !ok {
		return fmt.Errorf("delete device: %w", ErrNotFound)
	}
	delete(r.state.devices, id)
	r.record(func() { r.state.devices[id] = prev })
	return nil
}

func (r *memRepo) CreateHold(ctx context.Context, hold *models.Hold) (int64, error) {
	if hold.End == nil {
		for _, h := range r.state.holds {
			if h.IsActive() && (h.DeviceID == hold.DeviceID || h.Label == hold.Label) {
				return 0, fmt.Errorf("insert hold: %w", ErrDuplicate)
			}
		}
	}
	stored := hold.Copy()
	stored.ID = r.state.nextHoldID
	stored.Start = stored.Start.UTC()
	stored.End = utcPtr(stored.End)
	r.state.holds[stored.ID] = stored
	r.state.nextHoldID++
	r.record(func() {
		delete(r.state.holds, stored.ID)
		r.state.nextHoldID = stored.ID
	})
	return stored.ID, nil
}

func (r *memRepo) FindHold(ctx context.Context, id int64) (*models.Hold, error) {
	h, ok := r.state.holds[id]
	if !ok {
		return nil, nil
	}
	return h.Copy(), nil
}

func (r *memRepo) FindHoldsByDevice(ctx context.Context, deviceID string) ([]*models.Hold, error) {
	return r.filterHolds(func(h *models.Hold) bool { return h.DeviceID == deviceID }), nil
}

func (r *memRepo) FindHoldsByLabel(ctx context.Context, label string) ([]*models.Hold, error) {
	return r.filterHolds(func(h *models.Hold) bool { return h.Label == label }), nil
}

func (r *memRepo) SetHoldEnd(ctx context.Context, id int64, end time.Time) error {
	h, ok := r.state.holds[id]
	if !ok {
		return fmt.Errorf("set hold end: %w", ErrNotFound)
	}
	r.restoreOnRollback(id, h)
	u := end.UTC()
	h.End = &u
	return nil
}

func (r *memRepo) UpdateHold(ctx context.Context, id int64, start, end *time.Time) error {
	h, ok := r.state.holds[id]
	if !ok {
		return fmt.Errorf("update hold: %w", ErrNotFound)
	}
	r.restoreOnRollback(id, h)
	if start != nil {
		h.Start = start.UTC()
	}
	if end != nil {
		h.End = utcPtr(end)
	}
	return nil
}

func (r *memRepo) DeleteHold(ctx context.Context, id int64) error {
	h, ok := r.state.holds[id]
	if !ok {
		return fmt.Errorf("delete hold: %w", ErrNotFound)
	}
	delete(r.state.holds, id)
	r.record(func() { r.state.holds[id] = h })
	return nil
}

// restoreOnRollback journals a snapshot of h before it is edited in place
func (r *memRepo) restoreOnRollback(id int64, h *models.Hold) {
	if !r.journaled {
		return
	}
	prev := h.Copy()
	r.record(func() { r.state.holds[id] = prev })
}

func (r *memRepo) filterHolds(keep func(*models.Hold) bool) []*models.Hold {
	holds := []*models.Hold{}
	for _, h := range r.state.holds {
		if keep(h) {
			holds = append(holds, h.Copy())
		}
	}
	sort.Slice(holds, func(i, j int) bool {
		if holds[i].Start.Equal(holds[j].Start) {
			return holds[i].ID < holds[j].ID
		}
		return holds[i].Start.Before(holds[j].Start)
	})
	return holds
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
