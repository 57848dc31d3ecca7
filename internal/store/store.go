package store

import (
	"context"
	"errors"

	"glowpos/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// Repository is the storage boundary. Implementations must serialize each
// read-modify-write cycle per entity collection; callers may issue requests
// concurrently.
//
// Update methods take the id separately from the record: a record passed in
// can never change its own identity, and created_at is preserved from the
// stored record.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int) (bool, error)

	ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id int) (*domain.PurchaseOrder, error)
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, id int, po domain.PurchaseOrder) (*domain.PurchaseOrder, error)

	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id int) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, txn domain.Transaction) (*domain.Transaction, error)

	ListBatches(ctx context.Context) ([]domain.Batch, error)
	GetBatch(ctx context.Context, id int) (*domain.Batch, error)
	CreateBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error)
	UpdateBatch(ctx context.Context, id int, batch domain.Batch) (*domain.Batch, error)

	ListStaff(ctx context.Context) ([]domain.Staff, error)
	GetStaff(ctx context.Context, id int) (*domain.Staff, error)
	CreateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error)
	UpdateStaff(ctx context.Context, id int, staff domain.Staff) (*domain.Staff, error)
	DeleteStaff(ctx context.Context, id int) (bool, error)

	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateUser(ctx context.Context, id int, user domain.User) (*domain.User, error)
	DeleteUser(ctx context.Context, id int) (bool, error)

	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error)

	// NextSequence returns the next value of the named monotonic counter.
	// Counters are persisted outside the record collections and values are
	// never reused, so document numbers derived from them cannot collide
	// even after records are deleted.
	NextSequence(ctx context.Context, key string) (int, error)
}
