package domain

import "time"

// Meta is the base shape every stored record carries. The id is assigned by
// the store and immutable afterwards; created_at is set once and updated_at
// is refreshed on every update.
type Meta struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record is implemented by pointers to all stored entity types.
type Record interface {
	RecordMeta() *Meta
}

func (m *Meta) RecordMeta() *Meta { return m }

const (
	RoleAdmin        = "Admin"
	RoleCashier      = "Cashier"
	RoleStockManager = "Stock Manager"
	RoleHR           = "HR"
)

const (
	StockStatusInStock    = "in_stock"
	StockStatusLowStock   = "low_stock"
	StockStatusOutOfStock = "out_of_stock"
)

// StockStatus derives a product's display status from its current stock and
// reorder threshold. Status is never stored authoritatively; every call site
// that needs it goes through this function.
func StockStatus(stock, minStock int) string {
	switch {
	case stock == 0:
		return StockStatusOutOfStock
	case stock < minStock:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

type Product struct {
	Meta
	Name              string  `json:"name"`
	Brand             string  `json:"brand,omitempty"`
	Category          string  `json:"category"`
	SKU               string  `json:"sku,omitempty"`
	Stock             int     `json:"stock"`
	MinStock          int     `json:"min_stock"`
	CostCents         int64   `json:"cost_cents"`
	SellingPriceCents int64   `json:"selling_price_cents"`
	DiscountPercent   float64 `json:"discount_percent"`
	Supplier          string  `json:"supplier,omitempty"`
	Active            bool    `json:"active"`
	// Status is derived from Stock and MinStock on every read; it is never
	// persisted.
	Status string `json:"status,omitempty"`
}

type ProductCreateRequest struct {
	Name              string  `json:"name" validate:"required"`
	Brand             string  `json:"brand"`
	Category          string  `json:"category" validate:"required"`
	SKU               string  `json:"sku"`
	Stock             int     `json:"stock" validate:"min=0"`
	MinStock          int     `json:"min_stock" validate:"min=0"`
	CostCents         int64   `json:"cost_cents" validate:"min=0"`
	SellingPriceCents int64   `json:"selling_price_cents" validate:"required,min=1"`
	DiscountPercent   float64 `json:"discount_percent" validate:"min=0,max=100"`
	Supplier          string  `json:"supplier"`
}

type ProductUpdateRequest struct {
	Name              *string  `json:"name,omitempty"`
	Brand             *string  `json:"brand,omitempty"`
	Category          *string  `json:"category,omitempty"`
	SKU               *string  `json:"sku,omitempty"`
	Stock             *int     `json:"stock,omitempty" validate:"omitempty,min=0"`
	MinStock          *int     `json:"min_stock,omitempty" validate:"omitempty,min=0"`
	CostCents         *int64   `json:"cost_cents,omitempty" validate:"omitempty,min=0"`
	SellingPriceCents *int64   `json:"selling_price_cents,omitempty" validate:"omitempty,min=1"`
	DiscountPercent   *float64 `json:"discount_percent,omitempty" validate:"omitempty,min=0,max=100"`
	Supplier          *string  `json:"supplier,omitempty"`
	Active            *bool    `json:"active,omitempty"`
}

const (
	POStatusPending   = "pending"
	POStatusApproved  = "approved"
	POStatusReceived  = "received"
	POStatusCancelled = "cancelled"
)

type PurchaseOrderItem struct {
	ProductID     int    `json:"product_id" validate:"required,min=1"`
	ProductName   string `json:"product_name"`
	Qty           int    `json:"qty" validate:"required,min=1"`
	UnitCostCents int64  `json:"unit_cost_cents" validate:"min=0"`
}

type PurchaseOrder struct {
	Meta
	PONumber   string              `json:"po_number"`
	Supplier   string              `json:"supplier"`
	Items      []PurchaseOrderItem `json:"items"`
	TotalCents int64               `json:"total_cents"`
	Status     string              `json:"status"`
	CreatedBy  string              `json:"created_by"`
	ApprovedBy string              `json:"approved_by,omitempty"`
	ReceivedBy string              `json:"received_by,omitempty"`
	ReceivedAt *time.Time          `json:"received_at,omitempty"`
}

type PurchaseOrderCreateRequest struct {
	Supplier string              `json:"supplier" validate:"required"`
	Items    []PurchaseOrderItem `json:"items" validate:"required,min=1,dive"`
}

const (
	TxStatusCompleted = "completed"

	PaymentCash = "cash"
	PaymentCard = "card"
)

type TransactionItem struct {
	ProductID       int     `json:"product_id" validate:"required,min=1"`
	Name            string  `json:"name"`
	Qty             int     `json:"qty" validate:"required,min=1"`
	UnitPriceCents  int64   `json:"unit_price_cents"`
	DiscountPercent float64 `json:"discount_percent"`
	LineTotalCents  int64   `json:"line_total_cents"`
}

type Transaction struct {
	Meta
	TxnNumber           string            `json:"txn_number"`
	Reference           string            `json:"reference"`
	Items               []TransactionItem `json:"items"`
	SubtotalCents       int64             `json:"subtotal_cents"`
	TaxCents            int64             `json:"tax_cents"`
	TotalCents          int64             `json:"total_cents"`
	PaymentMethod       string            `json:"payment_method"`
	AmountReceivedCents int64             `json:"amount_received_cents"`
	ChangeCents         int64             `json:"change_cents"`
	Status              string            `json:"status"`
	Cashier             string            `json:"cashier"`
	BatchID             int               `json:"batch_id"`
}

type TransactionCreateRequest struct {
	Items               []TransactionItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod       string            `json:"payment_method" validate:"required,oneof=cash card"`
	AmountReceivedCents int64             `json:"amount_received_cents" validate:"min=0"`
}

const (
	BatchStatusOpen   = "open"
	BatchStatusClosed = "closed"
)

type Batch struct {
	Meta
	BatchNumber      string     `json:"batch_number"`
	Cashier          string     `json:"cashier"`
	OpeningCashCents int64      `json:"opening_cash_cents"`
	ClosingCashCents int64      `json:"closing_cash_cents,omitempty"`
	TotalSalesCents  int64      `json:"total_sales_cents"`
	CashSalesCents   int64      `json:"cash_sales_cents"`
	CardSalesCents   int64      `json:"card_sales_cents"`
	TransactionCount int        `json:"transaction_count"`
	Status           string     `json:"status"`
	OpenedAt         time.Time  `json:"opened_at"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	Remarks          string     `json:"remarks,omitempty"`
}

type BatchOpenRequest struct {
	OpeningCashCents int64 `json:"opening_cash_cents" validate:"min=0"`
}

type BatchCloseRequest struct {
	ClosingCashCents   int64  `json:"closing_cash_cents" validate:"min=0"`
	Remarks            string `json:"remarks"`
	ConfirmDiscrepancy bool   `json:"confirm_discrepancy"`
}

// BatchCloseResponse reports the cash reconciliation of a close attempt.
// DifferenceCents is closing cash minus expected cash (opening + cash sales);
// a negative value means the drawer came up short.
type BatchCloseResponse struct {
	Batch           Batch `json:"batch"`
	ExpectedCents   int64 `json:"expected_cents"`
	DifferenceCents int64 `json:"difference_cents"`
}

const (
	StaffStatusActive   = "active"
	StaffStatusInactive = "inactive"
)

type Staff struct {
	Meta
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Status     string `json:"status"`
}

type StaffCreateRequest struct {
	Name  string `json:"name" validate:"required"`
	Role  string `json:"role" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" validate:"omitempty,email"`
}

type StaffUpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	Role   *string `json:"role,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// User is the persistence model for an account. The password field holds a
// bcrypt hash and must never reach a client; responses go through View.
type User struct {
	Meta
	Username string   `json:"username"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
	Active   bool     `json:"active"`
}

// UserView is the client-facing shape of a User. It has no password field.
type UserView struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Roles:     u.Roles,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type UserCreateRequest struct {
	Username string   `json:"username" validate:"required,min=4"`
	Password string   `json:"password" validate:"required,min=6"`
	Roles    []string `json:"roles" validate:"required,min=1"`
}

type UserUpdateRequest struct {
	Password *string   `json:"password,omitempty" validate:"omitempty,min=6"`
	Roles    *[]string `json:"roles,omitempty" validate:"omitempty,min=1"`
	Active   *bool     `json:"active,omitempty"`
}

type Settings struct {
	StoreName      string    `json:"store_name"`
	Address        string    `json:"address,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	TaxRatePercent float64   `json:"tax_rate_percent"`
	Currency       string    `json:"currency"`
	ReceiptFooter  string    `json:"receipt_footer,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefaultSettings is the settings document a fresh deployment starts with.
func DefaultSettings() Settings {
	return Settings{
		StoreName:      "Glow Atelier",
		TaxRatePercent: 10,
		Currency:       "USD",
		ReceiptFooter:  "Thank you for shopping with us!",
	}
}

type SettingsUpdateRequest struct {
	StoreName      *string  `json:"store_name,omitempty"`
	Address        *string  `json:"address,omitempty"`
	Phone          *string  `json:"phone,omitempty"`
	Email          *string  `json:"email,omitempty" validate:"omitempty,email"`
	TaxRatePercent *float64 `json:"tax_rate_percent,omitempty" validate:"omitempty,min=0,max=100"`
	Currency       *string  `json:"currency,omitempty"`
	ReceiptFooter  *string  `json:"receipt_footer,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	ExpiresAt   string   `json:"expires_at"`
}

// Actor is the authenticated principal attached to a request context after
// token verification.
type Actor struct {
	Username string
	Roles    []string
}

// HasRole reports whether the actor holds the named role anywhere in its
// role set. Role order carries no meaning.
func (a Actor) HasRole(role string) bool {
	for _, held := range a.Roles {
		if held == role {
			return true
		}
	}
	return false
}
