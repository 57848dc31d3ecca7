package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"glowpos/backend/internal/domain"
	"glowpos/backend/internal/store"
)

// Store implements store.Repository on PostgreSQL. Row ids follow the same
// contract as the file store: the next id is max(id)+1 within the table,
// assigned inside a serializable transaction.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			sku TEXT NOT NULL DEFAULT '',
			stock INT NOT NULL DEFAULT 0,
			min_stock INT NOT NULL DEFAULT 0,
			cost_cents BIGINT NOT NULL DEFAULT 0,
			selling_price_cents BIGINT NOT NULL,
			discount_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			supplier TEXT NOT NULL DEFAULT '',
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS purchase_orders (
			id BIGINT PRIMARY KEY,
			po_number TEXT NOT NULL,
			supplier TEXT NOT NULL,
			items JSONB NOT NULL DEFAULT '[]',
			total_cents BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_by TEXT NOT NULL,
			approved_by TEXT NOT NULL DEFAULT '',
			received_by TEXT NOT NULL DEFAULT '',
			received_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGINT PRIMARY KEY,
			txn_number TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			items JSONB NOT NULL DEFAULT '[]',
			subtotal_cents BIGINT NOT NULL,
			tax_cents BIGINT NOT NULL,
			total_cents BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			amount_received_cents BIGINT NOT NULL,
			change_cents BIGINT NOT NULL,
			status TEXT NOT NULL,
			cashier TEXT NOT NULL,
			batch_id BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS batches (
			id BIGINT PRIMARY KEY,
			batch_number TEXT NOT NULL,
			cashier TEXT NOT NULL,
			opening_cash_cents BIGINT NOT NULL DEFAULT 0,
			closing_cash_cents BIGINT NOT NULL DEFAULT 0,
			total_sales_cents BIGINT NOT NULL DEFAULT 0,
			cash_sales_cents BIGINT NOT NULL DEFAULT 0,
			card_sales_cents BIGINT NOT NULL DEFAULT 0,
			transaction_count INT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ,
			remarks TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS staff (
			id BIGINT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_users (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			roles JSONB NOT NULL DEFAULT '[]',
			active BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id INT PRIMARY KEY DEFAULT 1,
			store_name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			tax_rate_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'USD',
			receipt_footer TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sequences (
			key TEXT PRIMARY KEY,
			value BIGINT NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// nextID allocates max(id)+1 for a table inside the caller's transaction.
func nextID(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var id int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0)+1 FROM `+table).Scan(&id)
	return id, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, brand, category, sku, stock, min_stock, cost_cents,
			selling_price_cents, discount_percent, supplier, active, created_at, updated_at
		FROM products
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.SKU, &p.Stock, &p.MinStock, &p.CostCents, &p.SellingPriceCents, &p.DiscountPercent, &p.Supplier, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, brand, category, sku, stock, min_stock, cost_cents,
			selling_price_cents, discount_percent, supplier, active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.SKU, &p.Stock, &p.MinStock, &p.CostCents, &p.SellingPriceCents, &p.DiscountPercent, &p.Supplier, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := nextID(ctx, tx, "products")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product.ID = id
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (
			id, name, brand, category, sku, stock, min_stock, cost_cents,
			selling_price_cents, discount_percent, supplier, active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, product.ID, product.Name, product.Brand, product.Category, product.SKU, product.Stock, product.MinStock, product.CostCents, product.SellingPriceCents, product.DiscountPercent, product.Supplier, product.Active, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id int, product domain.Product) (*domain.Product, error) {
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, brand = $3, category = $4, sku = $5, stock = $6, min_stock = $7,
			cost_cents = $8, selling_price_cents = $9, discount_percent = $10,
			supplier = $11, active = $12, updated_at = now()
		WHERE id = $1
		RETURNING created_at
	`, id, product.Name, product.Brand, product.Category, product.SKU, product.Stock, product.MinStock, product.CostCents, product.SellingPriceCents, product.DiscountPercent, product.Supplier, product.Active).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	product.ID = id
	product.CreatedAt = createdAt.UTC()
	product.UpdatedAt = time.Now().UTC()
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int) (bool, error) {
	return s.deleteByID(ctx, "products", id)
}

func (s *Store) deleteByID(ctx context.Context, table string, id int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, po_number, supplier, items, total_cents, status, created_by,
			approved_by, received_by, received_at, created_at, updated_at
		FROM purchase_orders
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.PurchaseOrder, 0, 64)
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchaseOrder(row rowScanner) (domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	var itemsRaw []byte
	var receivedAt sql.NullTime
	if err := row.Scan(&po.ID, &po.PONumber, &po.Supplier, &itemsRaw, &po.TotalCents, &po.Status, &po.CreatedBy, &po.ApprovedBy, &po.ReceivedBy, &receivedAt, &po.CreatedAt, &po.UpdatedAt); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &po.Items); err != nil {
			return domain.PurchaseOrder{}, err
		}
	}
	if receivedAt.Valid {
		at := receivedAt.Time.UTC()
		po.ReceivedAt = &at
	}
	po.CreatedAt = po.CreatedAt.UTC()
	po.UpdatedAt = po.UpdatedAt.UTC()
	return po, nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, id int) (*domain.PurchaseOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, po_number, supplier, items, total_cents, status, created_by,
			approved_by, received_by, received_at, created_at, updated_at
		FROM purchase_orders
		WHERE id = $1
	`, id)
	po, err := scanPurchaseOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &po, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	itemsJSON, err := json.Marshal(po.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := nextID(ctx, tx, "purchase_orders")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	po.ID = id
	po.CreatedAt = now
	po.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (
			id, po_number, supplier, items, total_cents, status, created_by,
			approved_by, received_by, received_at, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, po.ID, po.PONumber, po.Supplier, itemsJSON, po.TotalCents, po.Status, po.CreatedBy, po.ApprovedBy, po.ReceivedBy, nullTime(po.ReceivedAt), po.CreatedAt, po.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := po
	return &created, nil
}

func (s *Store) UpdatePurchaseOrder(ctx context.Context, id int, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	itemsJSON, err := json.Marshal(po.Items)
	if err != nil {
		return nil, err
	}

	var createdAt time.Time
	err = s.db.QueryRowContext(ctx, `
		UPDATE purchase_orders
		SET po_number = $2, supplier = $3, items = $4, total_cents = $5, status = $6,
			created_by = $7, approved_by = $8, received_by = $9, received_at = $10, updated_at = now()
		WHERE id = $1
		RETURNING created_at
	`, id, po.PONumber, po.Supplier, itemsJSON, po.TotalCents, po.Status, po.CreatedBy, po.ApprovedBy, po.ReceivedBy, nullTime(po.ReceivedAt)).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	po.ID = id
	po.CreatedAt = createdAt.UTC()
	po.UpdatedAt = time.Now().UTC()
	updated := po
	return &updated, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, txn_number, reference, items, subtotal_cents, tax_cents, total_cents,
			payment_method, amount_received_cents, change_cents, status, cashier, batch_id,
			created_at, updated_at
		FROM transactions
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]domain.Transaction, 0, 128)
	for rows.Next() {
		var txn domain.Transaction
		var itemsRaw []byte
		if err := rows.Scan(&txn.ID, &txn.TxnNumber, &txn.Reference, &itemsRaw, &txn.SubtotalCents, &txn.TaxCents, &txn.TotalCents, &txn.PaymentMethod, &txn.AmountReceivedCents, &txn.ChangeCents, &txn.Status, &txn.Cashier, &txn.BatchID, &txn.CreatedAt, &txn.UpdatedAt); err != nil {
			return nil, err
		}
		if len(itemsRaw) > 0 {
			if err := json.Unmarshal(itemsRaw, &txn.Items); err != nil {
				return nil, err
			}
		}
		txn.CreatedAt = txn.CreatedAt.UTC()
		txn.UpdatedAt = txn.UpdatedAt.UTC()
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int) (*domain.Transaction, error) {
	var txn domain.Transaction
	var itemsRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, txn_number, reference, items, subtotal_cents, tax_cents, total_cents,
			payment_method, amount_received_cents, change_cents, status, cashier, batch_id,
			created_at, updated_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(&txn.ID, &txn.TxnNumber, &txn.Reference, &itemsRaw, &txn.SubtotalCents, &txn.TaxCents, &txn.TotalCents, &txn.PaymentMethod, &txn.AmountReceivedCents, &txn.ChangeCents, &txn.Status, &txn.Cashier, &txn.BatchID, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &txn.Items); err != nil {
			return nil, err
		}
	}
	txn.CreatedAt = txn.CreatedAt.UTC()
	txn.UpdatedAt = txn.UpdatedAt.UTC()
	return &txn, nil
}

func (s *Store) CreateTransaction(ctx context.Context, txn domain.Transaction) (*domain.Transaction, error) {
	itemsJSON, err := json.Marshal(txn.Items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := nextID(ctx, tx, "transactions")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn.ID = id
	txn.CreatedAt = now
	txn.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, txn_number, reference, items, subtotal_cents, tax_cents, total_cents,
			payment_method, amount_received_cents, change_cents, status, cashier, batch_id,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, txn.ID, txn.TxnNumber, txn.Reference, itemsJSON, txn.SubtotalCents, txn.TaxCents, txn.TotalCents, txn.PaymentMethod, txn.AmountReceivedCents, txn.ChangeCents, txn.Status, txn.Cashier, txn.BatchID, txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := txn
	return &created, nil
}

func (s *Store) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_number, cashier, opening_cash_cents, closing_cash_cents,
			total_sales_cents, cash_sales_cents, card_sales_cents, transaction_count,
			status, opened_at, closed_at, remarks, created_at, updated_at
		FROM batches
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0, 64)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func scanBatch(row rowScanner) (domain.Batch, error) {
	var batch domain.Batch
	var closedAt sql.NullTime
	if err := row.Scan(&batch.ID, &batch.BatchNumber, &batch.Cashier, &batch.OpeningCashCents, &batch.ClosingCashCents, &batch.TotalSalesCents, &batch.CashSalesCents, &batch.CardSalesCents, &batch.TransactionCount, &batch.Status, &batch.OpenedAt, &closedAt, &batch.Remarks, &batch.CreatedAt, &batch.UpdatedAt); err != nil {
		return domain.Batch{}, err
	}
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		batch.ClosedAt = &at
	}
	batch.OpenedAt = batch.OpenedAt.UTC()
	batch.CreatedAt = batch.CreatedAt.UTC()
	batch.UpdatedAt = batch.UpdatedAt.UTC()
	return batch, nil
}

func (s *Store) GetBatch(ctx context.Context, id int) (*domain.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, batch_number, cashier, opening_cash_cents, closing_cash_cents,
			total_sales_cents, cash_sales_cents, card_sales_cents, transaction_count,
			status, opened_at, closed_at, remarks, created_at, updated_at
		FROM batches
		WHERE id = $1
	`, id)
	batch, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (s *Store) CreateBatch(ctx context.Context, batch domain.Batch) (*domain.Batch, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := nextID(ctx, tx, "batches")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	batch.ID = id
	batch.CreatedAt = now
	batch.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (
			id, batch_number, cashier, opening_cash_cents, closing_cash_cents,
			total_sales_cents, cash_sales_cents, card_sales_cents, transaction_count,
			status, opened_at, closed_at, remarks, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, batch.ID, batch.BatchNumber, batch.Cashier, batch.OpeningCashCents, batch.ClosingCashCents, batch.TotalSalesCents, batch.CashSalesCents, batch.CardSalesCents, batch.TransactionCount, batch.Status, batch.OpenedAt, nullTime(batch.ClosedAt), batch.Remarks, batch.CreatedAt, batch.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := batch
	return &created, nil
}

func (s *Store) UpdateBatch(ctx context.Context, id int, batch domain.Batch) (*domain.Batch, error) {
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		UPDATE batches
		SET batch_number = $2, cashier = $3, opening_cash_cents = $4, closing_cash_cents = $5,
			total_sales_cents = $6, cash_sales_cents = $7, card_sales_cents = $8,
			transaction_count = $9, status = $10, opened_at = $11, closed_at = $12,
			remarks = $13, updated_at = now()
		WHERE id = $1
		RETURNING created_at
	`, id, batch.BatchNumber, batch.Cashier, batch.OpeningCashCents, batch.ClosingCashCents, batch.TotalSalesCents, batch.CashSalesCents, batch.CardSalesCents, batch.TransactionCount, batch.Status, batch.OpenedAt, nullTime(batch.ClosedAt), batch.Remarks).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	batch.ID = id
	batch.CreatedAt = createdAt.UTC()
	batch.UpdatedAt = time.Now().UTC()
	updated := batch
	return &updated, nil
}

func (s *Store) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, name, role, phone, email, status, created_at, updated_at
		FROM staff
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]domain.Staff, 0, 32)
	for rows.Next() {
		var member domain.Staff
		if err := rows.Scan(&member.ID, &member.EmployeeID, &member.Name, &member.Role, &member.Phone, &member.Email, &member.Status, &member.CreatedAt, &member.UpdatedAt); err != nil {
			return nil, err
		}
		member.CreatedAt = member.CreatedAt.UTC()
		member.UpdatedAt = member.UpdatedAt.UTC()
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Store) GetStaff(ctx context.Context, id int) (*domain.Staff, error) {
	var member domain.Staff
	err := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, name, role, phone, email, status, created_at, updated_at
		FROM staff
		WHERE id = $1
	`, id).Scan(&member.ID, &member.EmployeeID, &member.Name, &member.Role, &member.Phone, &member.Email, &member.Status, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	member.CreatedAt = member.CreatedAt.UTC()
	member.UpdatedAt = member.UpdatedAt.UTC()
	return &member, nil
}

func (s *Store) CreateStaff(ctx context.Context, staff domain.Staff) (*domain.Staff, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := nextID(ctx, tx, "staff")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	staff.ID = id
	staff.CreatedAt = now
	staff.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO staff (id, employee_id, name, role, phone, email, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, staff.ID, staff.EmployeeID, staff.Name, staff.Role, staff.Phone, staff.Email, staff.Status, staff.CreatedAt, staff.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := staff
	return &created, nil
}

func (s *Store) UpdateStaff(ctx context.Context, id int, staff domain.Staff) (*domain.Staff, error) {
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		UPDATE staff
		SET employee_id = $2, name = $3, role = $4, phone = $5, email = $6, status = $7, updated_at = now()
		WHERE id = $1
		RETURNING created_at
	`, id, staff.EmployeeID, staff.Name, staff.Role, staff.Phone, staff.Email, staff.Status).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	staff.ID = id
	staff.CreatedAt = createdAt.UTC()
	staff.UpdatedAt = time.Now().UTC()
	updated := staff
	return &updated, nil
}

func (s *Store) DeleteStaff(ctx context.Context, id int) (bool, error) {
	return s.deleteByID(ctx, "staff", id)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password, roles, active, created_at, updated_at
		FROM app_users
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row rowScanner) (domain.User, error) {
	var user domain.User
	var rolesRaw []byte
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &rolesRaw, &user.Active, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	if len(rolesRaw) > 0 {
		if err := json.Unmarshal(rolesRaw, &user.Roles); err != nil {
			return domain.User{}, err
		}
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id int) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, roles, active, created_at, updated_at
		FROM app_users
		WHERE id = $1
	`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password, roles, active, created_at, updated_at
		FROM app_users
		WHERE lower(username) = lower($1)
	`, username)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	id, err := nextID(ctx, tx, "app_users")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO app_users (id, username, password, roles, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, user.ID, user.Username, user.Password, rolesJSON, user.Active, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int, user domain.User) (*domain.User, error) {
	rolesJSON, err := json.Marshal(user.Roles)
	if err != nil {
		return nil, err
	}

	var createdAt time.Time
	err = s.db.QueryRowContext(ctx, `
		UPDATE app_users
		SET username = $2, password = $3, roles = $4, active = $5, updated_at = now()
		WHERE id = $1
		RETURNING created_at
	`, id, user.Username, user.Password, rolesJSON, user.Active).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	user.ID = id
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = time.Now().UTC()
	updated := user
	return &updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int) (bool, error) {
	return s.deleteByID(ctx, "app_users", id)
}

func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	var settings domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT store_name, address, phone, email, tax_rate_percent, currency, receipt_footer, updated_at
		FROM settings
		WHERE id = 1
	`).Scan(&settings.StoreName, &settings.Address, &settings.Phone, &settings.Email, &settings.TaxRatePercent, &settings.Currency, &settings.ReceiptFooter, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			defaults := domain.DefaultSettings()
			return &defaults, nil
		}
		return nil, err
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

func (s *Store) UpdateSettings(ctx context.Context, settings domain.Settings) (*domain.Settings, error) {
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, store_name, address, phone, email, tax_rate_percent, currency, receipt_footer, updated_at)
		VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id)
		DO UPDATE SET store_name = EXCLUDED.store_name, address = EXCLUDED.address,
			phone = EXCLUDED.phone, email = EXCLUDED.email,
			tax_rate_percent = EXCLUDED.tax_rate_percent, currency = EXCLUDED.currency,
			receipt_footer = EXCLUDED.receipt_footer, updated_at = EXCLUDED.updated_at
	`, settings.StoreName, settings.Address, settings.Phone, settings.Email, settings.TaxRatePercent, settings.Currency, settings.ReceiptFooter, settings.UpdatedAt)
	if err != nil {
		return nil, err
	}
	saved := settings
	return &saved, nil
}

func (s *Store) NextSequence(ctx context.Context, key string) (int, error) {
	var value int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (key, value)
		VALUES ($1, 1)
		ON CONFLICT (key)
		DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, key).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
