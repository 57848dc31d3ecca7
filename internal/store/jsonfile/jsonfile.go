package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"glowpos/backend/internal/domain"
	"glowpos/backend/internal/store"
)

// Store implements store.Repository over one JSON array file per entity
// type, plus a settings document and a sequence file for document-number
// counters. It is the default repository for single-node deployments.
type Store struct {
	dir string

	products       *collection[domain.Product, *domain.Product]
	purchaseOrders *collection[domain.PurchaseOrder, *domain.PurchaseOrder]
	transactions   *collection[domain.Transaction, *domain.Transaction]
	batches        *collection[domain.Batch, *domain.Batch]
	staff          *collection[domain.Staff, *domain.Staff]
	users          *collection[domain.User, *domain.User]

	settingsMu sync.Mutex
	seqMu      sync.Mutex
}

func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &Store{
		dir:            dir,
		products:       newCollection[domain.Product](dir, "products.json"),
		purchaseOrders: newCollection[domain.PurchaseOrder](dir, "purchase_orders.json"),
		transactions:   newCollection[domain.Transaction](dir, "transactions.json"),
		batches:        newCollection[domain.Batch](dir, "batches.json"),
		staff:          newCollection[domain.Staff](dir, "staff.json"),
		users:          newCollection[domain.User](dir, "users.json"),
	}, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	return s.products.all()
}

func (s *Store) GetProduct(_ context.Context, id int) (*domain.Product, error) {
	return s.products.get(id)
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	return s.products.create(product)
}

func (s *Store) UpdateProduct(_ context.Context, id int, product domain.Product) (*domain.Product, error) {
	return s.products.update(id, product)
}

func (s *Store) DeleteProduct(_ context.Context, id int) (bool, error) {
	return s.products.delete(id)
}

func (s *Store) ListPurchaseOrders(_ context.Context) ([]domain.PurchaseOrder, error) {
	return s.purchaseOrders.all()
}

func (s *Store) GetPurchaseOrder(_ context.Context, id int) (*domain.PurchaseOrder, error) {
	return s.purchaseOrders.get(id)
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	return s.purchaseOrders.create(po)
}

func (s *Store) UpdatePurchaseOrder(_ context.Context, id int, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	return s.purchaseOrders.update(id, po)
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	return s.transactions.all()
}

func (s *Store) GetTransaction(_ context.Context, id int) (*domain.Transaction, error) {
	return s.transactions.get(id)
}

func (s *Store) CreateTransaction(_ context.Context, txn domain.Transaction) (*domain.Transaction, error) {
	return s.transactions.create(txn)
}

func (s *Store) ListBatches(_ context.Context) ([]domain.Batch, error) {
	return s.batches.all()
}

func (s *Store) GetBatch(_ context.Context, id int) (*domain.Batch, error) {
	return s.batches.get(id)
}

func (s *Store) CreateBatch(_ context.Context, batch domain.Batch) (*domain.Batch, error) {
	return s.batches.create(batch)
}

func (s *Store) UpdateBatch(_ context.Context, id int, batch domain.Batch) (*domain.Batch, error) {
	return s.batches.update(id, batch)
}

func (s *Store) ListStaff(_ context.Context) ([]domain.Staff, error) {
	return s.staff.all()
}

func (s *Store) GetStaff(_ context.Context, id int) (*domain.Staff, error) {
	return s.staff.get(id)
}

func (s *Store) CreateStaff(_ context.Context, staff domain.Staff) (*domain.Staff, error) {
	return s.staff.create(staff)
}

func (s *Store) UpdateStaff(_ context.Context, id int, staff domain.Staff) (*domain.Staff, error) {
	return s.staff.update(id, staff)
}

func (s *Store) DeleteStaff(_ context.Context, id int) (bool, error) {
	return s.staff.delete(id)
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	return s.users.all()
}

func (s *Store) GetUser(_ context.Context, id int) (*domain.User, error) {
	return s.users.get(id)
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	users, err := s.users.all()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Username, username) {
			found := users[i]
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	existing, err := s.users.all()
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if strings.EqualFold(existing[i].Username, user.Username) {
			return nil, store.ErrConflict
		}
	}
	return s.users.create(user)
}

func (s *Store) UpdateUser(_ context.Context, id int, user domain.User) (*domain.User, error) {
	return s.users.update(id, user)
}

func (s *Store) DeleteUser(_ context.Context, id int) (bool, error) {
	return s.users.delete(id)
}

func (s *Store) settingsPath() string { return filepath.Join(s.dir, "settings.json") }

// GetSettings returns the single store-settings document, falling back to
// defaults when the file does not exist yet.
func (s *Store) GetSettings(_ context.Context) (*domain.Settings, error) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	data, err := os.ReadFile(s.settingsPath())
	if errors.Is(err, fs.ErrNotExist) {
		settings := domain.DefaultSettings()
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		settings := domain.DefaultSettings()
		return &settings, nil
	}

	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpdateSettings(_ context.Context, settings domain.Settings) (*domain.Settings, error) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, err
	}

	tmp := s.settingsPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, s.settingsPath()); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) sequencesPath() string { return filepath.Join(s.dir, "sequences.json") }

// NextSequence increments and persists the named counter. Counters live in
// their own file, separate from the record collections, so deleting records
// never rewinds a counter and document numbers never collide.
func (s *Store) NextSequence(_ context.Context, key string) (int, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	counters := map[string]int{}
	data, err := os.ReadFile(s.sequencesPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &counters); err != nil {
			return 0, err
		}
	}

	next := counters[key] + 1
	counters[key] = next

	out, err := json.MarshalIndent(counters, "", "  ")
	if err != nil {
		return 0, err
	}
	tmp := s.sequencesPath() + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, s.sequencesPath()); err != nil {
		return 0, err
	}
	return next, nil
}
