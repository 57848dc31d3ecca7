package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"glowpos/backend/internal/cache"
	"glowpos/backend/internal/domain"
	"glowpos/backend/internal/idgen"
	"glowpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

var validate = validator.New()

const (
	cacheKeyProducts = "glowpos:products"
	cacheKeySettings = "glowpos:settings"
)

type Service struct {
	repo     store.Repository
	cache    cache.Cache
	cacheTTL time.Duration
}

func New(repo store.Repository, c cache.Cache, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Service{
		repo:     repo,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

func validateStruct(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}

// documentNumber issues the next human-readable number for a document type,
// e.g. PO-2026-003 or TXN-20260828-014. The counter behind each
// prefix+scope pair is persisted and never reused, so numbers stay unique
// even after records are deleted.
func (s *Service) documentNumber(ctx context.Context, prefix, scope string) (string, error) {
	seq, err := s.repo.NextSequence(ctx, strings.ToLower(prefix)+":"+scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, scope, seq), nil
}

func dayScope() string  { return time.Now().UTC().Format("20060102") }
func yearScope() string { return time.Now().UTC().Format("2006") }

func (s *Service) logAudit(ctx context.Context, action, entity string, entityID any, detail string) {
	username := "system"
	if actor, ok := ActorFromContext(ctx); ok {
		username = actor.Username
	}
	log.Printf("[audit] actor=%s action=%s entity=%s id=%v %s", username, action, entity, entityID, detail)
}

func (s *Service) invalidate(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		log.Printf("[service] WARN: cache invalidate %s: %v", key, err)
	}
}

func withStatus(p domain.Product) domain.Product {
	p.Status = domain.StockStatus(p.Stock, p.MinStock)
	return p
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if payload, ok, err := s.cache.Get(ctx, cacheKeyProducts); err == nil && ok {
		var products []domain.Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
	}

	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i] = withStatus(products[i])
	}

	if payload, err := json.Marshal(products); err == nil {
		if err := s.cache.Set(ctx, cacheKeyProducts, payload, s.cacheTTL); err != nil {
			log.Printf("[service] WARN: cache set products: %v", err)
		}
	}

	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id int) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return withStatus(*product), nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := validateStruct(req); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		Name:              strings.TrimSpace(req.Name),
		Brand:             strings.TrimSpace(req.Brand),
		Category:          strings.TrimSpace(req.Category),
		SKU:               strings.ToUpper(strings.TrimSpace(req.SKU)),
		Stock:             req.Stock,
		MinStock:          req.MinStock,
		CostCents:         req.CostCents,
		SellingPriceCents: req.SellingPriceCents,
		DiscountPercent:   req.DiscountPercent,
		Supplier:          strings.TrimSpace(req.Supplier),
		Active:            true,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s price=%d stock=%d", created.Name, created.SellingPriceCents, created.Stock))

	return withStatus(*created), nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := validateStruct(req); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.Brand != nil {
		updated.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, fmt.Errorf("%w: category must not be empty", store.ErrValidation)
		}
		updated.Category = category
	}
	if req.SKU != nil {
		updated.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.Stock != nil {
		updated.Stock = *req.Stock
	}
	if req.MinStock != nil {
		updated.MinStock = *req.MinStock
	}
	if req.CostCents != nil {
		updated.CostCents = *req.CostCents
	}
	if req.SellingPriceCents != nil {
		updated.SellingPriceCents = *req.SellingPriceCents
	}
	if req.DiscountPercent != nil {
		updated.DiscountPercent = *req.DiscountPercent
	}
	if req.Supplier != nil {
		updated.Supplier = strings.TrimSpace(*req.Supplier)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, id, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("stock=%d active=%t", saved.Stock, saved.Active))

	return withStatus(*saved), nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int) error {
	removed, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return store.ErrNotFound
	}

	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

// LowStockProducts lists products sitting at or below their reorder
// threshold, out-of-stock ones included.
func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Stock < p.MinStock {
			low = append(low, withStatus(p))
		}
	}
	return low, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	return s.repo.ListPurchaseOrders(ctx)
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id int) (domain.PurchaseOrder, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return *po, nil
}

// CreatePurchaseOrder validates every line against the catalog, totals the
// order and assigns the next PO number. An order created by a principal
// holding the Admin role is approved immediately with the creator recorded
// as approver; anyone else starts it pending.
func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: missing principal", store.ErrValidation)
	}
	if err := validateStruct(req); err != nil {
		return domain.PurchaseOrder{}, err
	}

	items := make([]domain.PurchaseOrderItem, 0, len(req.Items))
	var total int64
	for _, item := range req.Items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.PurchaseOrder{}, fmt.Errorf("%w: unknown product id %d", store.ErrValidation, item.ProductID)
			}
			return domain.PurchaseOrder{}, err
		}
		if item.UnitCostCents == 0 {
			item.UnitCostCents = product.CostCents
		}
		item.ProductName = product.Name
		total += int64(item.Qty) * item.UnitCostCents
		items = append(items, item)
	}

	poNumber, err := s.documentNumber(ctx, "PO", yearScope())
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	po := domain.PurchaseOrder{
		PONumber:   poNumber,
		Supplier:   strings.TrimSpace(req.Supplier),
		Items:      items,
		TotalCents: total,
		Status:     domain.POStatusPending,
		CreatedBy:  actor.Username,
	}
	if actor.HasRole(domain.RoleAdmin) {
		po.Status = domain.POStatusApproved
		po.ApprovedBy = actor.Username
	}

	created, err := s.repo.CreatePurchaseOrder(ctx, po)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.logAudit(ctx, "po_create", "purchase_order", created.ID, fmt.Sprintf("number=%s status=%s total=%d", created.PONumber, created.Status, created.TotalCents))
	return *created, nil
}

func (s *Service) ApprovePurchaseOrder(ctx context.Context, id int) (domain.PurchaseOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || !actor.HasRole(domain.RoleAdmin) {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}

	po, err := s.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if po.Status != domain.POStatusPending {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: purchase order is %s, only pending orders can be approved", store.ErrConflict, po.Status)
	}

	updated := *po
	updated.Status = domain.POStatusApproved
	updated.ApprovedBy = actor.Username

	saved, err := s.repo.UpdatePurchaseOrder(ctx, id, updated)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.logAudit(ctx, "po_approve", "purchase_order", saved.ID, "number="+saved.PONumber)
	return *saved, nil
}

// ReceivePurchaseOrder marks an approved order received and restocks every
// line's product.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, id int) (domain.PurchaseOrder, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: missing principal", store.ErrValidation)
	}

	po, err := s.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if po.Status != domain.POStatusApproved {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: purchase order is %s, only approved orders can be received", store.ErrConflict, po.Status)
	}

	for _, item := range po.Items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Printf("[service] WARN: received PO %s references missing product %d", po.PONumber, item.ProductID)
				continue
			}
			return domain.PurchaseOrder{}, err
		}
		restocked := *product
		restocked.Stock += item.Qty
		if _, err := s.repo.UpdateProduct(ctx, product.ID, restocked); err != nil {
			return domain.PurchaseOrder{}, err
		}
	}

	now := time.Now().UTC()
	updated := *po
	updated.Status = domain.POStatusReceived
	updated.ReceivedBy = actor.Username
	updated.ReceivedAt = &now

	saved, err := s.repo.UpdatePurchaseOrder(ctx, id, updated)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}

	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "po_receive", "purchase_order", saved.ID, "number="+saved.PONumber)
	return *saved, nil
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *Service) GetTransaction(ctx context.Context, id int) (domain.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *txn, nil
}

// CreateTransaction records a sale. Prices and discounts come from the
// catalog, never from the client; the tax rate comes from store settings.
// The sale requires an open batch for the acting cashier and rolls its
// totals into that batch.
func (s *Service) CreateTransaction(ctx context.Context, req domain.TransactionCreateRequest) (domain.Transaction, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Transaction{}, fmt.Errorf("%w: missing principal", store.ErrValidation)
	}
	if err := validateStruct(req); err != nil {
		return domain.Transaction{}, err
	}

	batch, err := s.openBatchFor(ctx, actor.Username)
	if err != nil {
		return domain.Transaction{}, err
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}

	type stockedLine struct {
		product domain.Product
		qty     int
	}

	items := make([]domain.TransactionItem, 0, len(req.Items))
	lines := make([]stockedLine, 0, len(req.Items))
	var subtotal int64
	for _, item := range req.Items {
		product, err := s.repo.GetProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Transaction{}, fmt.Errorf("%w: unknown product id %d", store.ErrValidation, item.ProductID)
			}
			return domain.Transaction{}, err
		}
		if product.Stock < item.Qty {
			return domain.Transaction{}, fmt.Errorf("%w: insufficient stock for %s (have %d, want %d)", store.ErrConflict, product.Name, product.Stock, item.Qty)
		}

		gross := int64(item.Qty) * product.SellingPriceCents
		discount := int64(math.Round(float64(gross) * product.DiscountPercent / 100))
		lineTotal := gross - discount
		subtotal += lineTotal

		items = append(items, domain.TransactionItem{
			ProductID:       product.ID,
			Name:            product.Name,
			Qty:             item.Qty,
			UnitPriceCents:  product.SellingPriceCents,
			DiscountPercent: product.DiscountPercent,
			LineTotalCents:  lineTotal,
		})
		lines = append(lines, stockedLine{product: *product, qty: item.Qty})
	}

	tax := int64(math.Round(float64(subtotal) * settings.TaxRatePercent / 100))
	total := subtotal + tax

	received := req.AmountReceivedCents
	var change int64
	switch req.PaymentMethod {
	case domain.PaymentCash:
		if received < total {
			return domain.Transaction{}, fmt.Errorf("%w: amount received %d is less than total %d", store.ErrValidation, received, total)
		}
		change = received - total
	case domain.PaymentCard:
		received = total
		change = 0
	}

	for _, line := range lines {
		sold := line.product
		sold.Stock -= line.qty
		if _, err := s.repo.UpdateProduct(ctx, sold.ID, sold); err != nil {
			return domain.Transaction{}, err
		}
	}

	txnNumber, err := s.documentNumber(ctx, "TXN", dayScope())
	if err != nil {
		return domain.Transaction{}, err
	}

	txn := domain.Transaction{
		TxnNumber:           txnNumber,
		Reference:           idgen.Reference(),
		Items:               items,
		SubtotalCents:       subtotal,
		TaxCents:            tax,
		TotalCents:          total,
		PaymentMethod:       req.PaymentMethod,
		AmountReceivedCents: received,
		ChangeCents:         change,
		Status:              domain.TxStatusCompleted,
		Cashier:             actor.Username,
		BatchID:             batch.ID,
	}

	created, err := s.repo.CreateTransaction(ctx, txn)
	if err != nil {
		return domain.Transaction{}, err
	}

	counted := *batch
	counted.TotalSalesCents += total
	counted.TransactionCount++
	if req.PaymentMethod == domain.PaymentCash {
		counted.CashSalesCents += total
	} else {
		counted.CardSalesCents += total
	}
	if _, err := s.repo.UpdateBatch(ctx, batch.ID, counted); err != nil {
		return domain.Transaction{}, err
	}

	s.invalidate(ctx, cacheKeyProducts)
	s.logAudit(ctx, "txn_create", "transaction", created.ID, fmt.Sprintf("number=%s total=%d method=%s", created.TxnNumber, created.TotalCents, created.PaymentMethod))

	return *created, nil
}

// TransactionsByDateRange lists transactions between two YYYY-MM-DD dates,
// inclusive on both ends.
func (s *Service) TransactionsByDateRange(ctx context.Context, startDate, endDate string) ([]domain.Transaction, error) {
	start, err := time.Parse("2006-01-02", strings.TrimSpace(startDate))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start_date %q", store.ErrValidation, startDate)
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(endDate))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end_date %q", store.ErrValidation, endDate)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date before start_date", store.ErrValidation)
	}
	cutoff := end.AddDate(0, 0, 1)

	all, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.Transaction, 0, len(all))
	for _, txn := range all {
		if txn.CreatedAt.Before(start) || !txn.CreatedAt.Before(cutoff) {
			continue
		}
		matched = append(matched, txn)
	}
	return matched, nil
}

func (s *Service) ListBatches(ctx context.Context) ([]domain.Batch, error) {
	return s.repo.ListBatches(ctx)
}

func (s *Service) GetBatch(ctx context.Context, id int) (domain.Batch, error) {
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return domain.Batch{}, err
	}
	return *batch, nil
}

func (s *Service) openBatchFor(ctx context.Context, cashier string) (*domain.Batch, error) {
	batches, err := s.repo.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	for i := range batches {
		if batches[i].Status == domain.BatchStatusOpen && strings.EqualFold(batches[i].Cashier, cashier) {
			found := batches[i]
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: no open batch for cashier %s", store.ErrConflict, cashier)
}

func (s *Service) OpenBatch(ctx context.Context, req domain.BatchOpenRequest) (domain.Batch, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Batch{}, fmt.Errorf("%w: missing principal", store.ErrValidation)
	}
	if err := validateStruct(req); err != nil {
		return domain.Batch{}, err
	}

	if _, err := s.openBatchFor(ctx, actor.Username); err == nil {
		return domain.Batch{}, fmt.Errorf("%w: cashier %s already has an open batch", store.ErrConflict, actor.Username)
	} else if !errors.Is(err, store.ErrConflict) {
		return domain.Batch{}, err
	}

	batchNumber, err := s.documentNumber(ctx, "BATCH", dayScope())
	if err != nil {
		return domain.Batch{}, err
	}

	batch := domain.Batch{
		BatchNumber:      batchNumber,
		Cashier:          actor.Username,
		OpeningCashCents: req.OpeningCashCents,
		Status:           domain.BatchStatusOpen,
		OpenedAt:         time.Now().UTC(),
	}

	created, err := s.repo.CreateBatch(ctx, batch)
	if err != nil {
		return domain.Batch{}, err
	}

	s.logAudit(ctx, "batch_open", "batch", created.ID, fmt.Sprintf("number=%s opening_cash=%d", created.BatchNumber, created.OpeningCashCents))
	return *created, nil
}

// CloseBatch reconciles the drawer. A non-zero difference between counted
// cash and expected cash (opening float plus cash sales) is rejected until
// the caller re-submits with confirm_discrepancy set; the response reports
// the difference either way.
func (s *Service) CloseBatch(ctx context.Context, id int, req domain.BatchCloseRequest) (domain.BatchCloseResponse, error) {
	if err := validateStruct(req); err != nil {
		return domain.BatchCloseResponse{}, err
	}

	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return domain.BatchCloseResponse{}, err
	}
	if batch.Status != domain.BatchStatusOpen {
		return domain.BatchCloseResponse{}, fmt.Errorf("%w: batch %s is already closed", store.ErrConflict, batch.BatchNumber)
	}

	expected := batch.OpeningCashCents + batch.CashSalesCents
	difference := req.ClosingCashCents - expected
	if difference != 0 && !req.ConfirmDiscrepancy {
		return domain.BatchCloseResponse{}, fmt.Errorf("%w: cash difference of %d cents (expected %d, counted %d); re-submit with confirm_discrepancy to close anyway", store.ErrConflict, difference, expected, req.ClosingCashCents)
	}

	now := time.Now().UTC()
	closed := *batch
	closed.ClosingCashCents = req.ClosingCashCents
	closed.ClosedAt = &now
	closed.Status = domain.BatchStatusClosed
	closed.Remarks = strings.TrimSpace(req.Remarks)

	saved, err := s.repo.UpdateBatch(ctx, id, closed)
	if err != nil {
		return domain.BatchCloseResponse{}, err
	}

	s.logAudit(ctx, "batch_close", "batch", saved.ID, fmt.Sprintf("number=%s difference=%d", saved.BatchNumber, difference))

	return domain.BatchCloseResponse{
		Batch:           *saved,
		ExpectedCents:   expected,
		DifferenceCents: difference,
	}, nil
}

func (s *Service) GetSettings(ctx context.Context) (domain.Settings, error) {
	if payload, ok, err := s.cache.Get(ctx, cacheKeySettings); err == nil && ok {
		var settings domain.Settings
		if err := json.Unmarshal(payload, &settings); err == nil {
			return settings, nil
		}
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	if payload, err := json.Marshal(settings); err == nil {
		if err := s.cache.Set(ctx, cacheKeySettings, payload, s.cacheTTL); err != nil {
			log.Printf("[service] WARN: cache set settings: %v", err)
		}
	}

	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.Settings, error) {
	if err := validateStruct(req); err != nil {
		return domain.Settings{}, err
	}

	existing, err := s.repo.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	updated := *existing
	if req.StoreName != nil {
		updated.StoreName = strings.TrimSpace(*req.StoreName)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.TaxRatePercent != nil {
		updated.TaxRatePercent = *req.TaxRatePercent
	}
	if req.Currency != nil {
		updated.Currency = strings.TrimSpace(*req.Currency)
	}
	if req.ReceiptFooter != nil {
		updated.ReceiptFooter = *req.ReceiptFooter
	}

	saved, err := s.repo.UpdateSettings(ctx, updated)
	if err != nil {
		return domain.Settings{}, err
	}

	s.invalidate(ctx, cacheKeySettings)
	s.logAudit(ctx, "settings_update", "settings", 1, "")
	return *saved, nil
}

func (s *Service) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	return s.repo.ListStaff(ctx)
}

func (s *Service) GetStaff(ctx context.Context, id int) (domain.Staff, error) {
	staff, err := s.repo.GetStaff(ctx, id)
	if err != nil {
		return domain.Staff{}, err
	}
	return *staff, nil
}

func (s *Service) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.Staff, error) {
	if err := validateStruct(req); err != nil {
		return domain.Staff{}, err
	}

	employeeID, err := s.documentNumber(ctx, "EMP", yearScope())
	if err != nil {
		return domain.Staff{}, err
	}

	staff := domain.Staff{
		EmployeeID: employeeID,
		Name:       strings.TrimSpace(req.Name),
		Role:       strings.TrimSpace(req.Role),
		Phone:      strings.TrimSpace(req.Phone),
		Email:      strings.TrimSpace(req.Email),
		Status:     domain.StaffStatusActive,
	}

	created, err := s.repo.CreateStaff(ctx, staff)
	if err != nil {
		return domain.Staff{}, err
	}

	s.logAudit(ctx, "staff_create", "staff", created.ID, "employee_id="+created.EmployeeID)
	return *created, nil
}

func (s *Service) UpdateStaff(ctx context.Context, id int, req domain.StaffUpdateRequest) (domain.Staff, error) {
	if err := validateStruct(req); err != nil {
		return domain.Staff{}, err
	}

	existing, err := s.repo.GetStaff(ctx, id)
	if err != nil {
		return domain.Staff{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Staff{}, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.Role != nil {
		updated.Role = strings.TrimSpace(*req.Role)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.Status != nil {
		updated.Status = *req.Status
	}

	saved, err := s.repo.UpdateStaff(ctx, id, updated)
	if err != nil {
		return domain.Staff{}, err
	}

	s.logAudit(ctx, "staff_update", "staff", saved.ID, "employee_id="+saved.EmployeeID)
	return *saved, nil
}

func (s *Service) DeleteStaff(ctx context.Context, id int) error {
	removed, err := s.repo.DeleteStaff(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return store.ErrNotFound
	}
	s.logAudit(ctx, "staff_delete", "staff", id, "")
	return nil
}

var knownRoles = map[string]bool{
	domain.RoleAdmin:        true,
	domain.RoleCashier:      true,
	domain.RoleStockManager: true,
	domain.RoleHR:           true,
}

func normalizeRoles(roles []string) ([]string, error) {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if !knownRoles[role] {
			return nil, fmt.Errorf("%w: unknown role %q", store.ErrValidation, role)
		}
		out = append(out, role)
	}
	return out, nil
}

// ListUsers returns the client-facing view of every account. Password
// hashes never leave the service layer.
func (s *Service) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]domain.UserView, 0, len(users))
	for _, user := range users {
		views = append(views, user.View())
	}
	return views, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	if err := validateStruct(req); err != nil {
		return domain.UserView{}, err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.UserView{}, fmt.Errorf("%w: username must not contain spaces", store.ErrValidation)
	}

	roles, err := normalizeRoles(req.Roles)
	if err != nil {
		return domain.UserView{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserView{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.CreateUser(ctx, domain.User{
		Username: username,
		Password: string(hash),
		Roles:    roles,
		Active:   true,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.UserView{}, fmt.Errorf("%w: username already exists", store.ErrConflict)
		}
		return domain.UserView{}, err
	}

	s.logAudit(ctx, "user_create", "user", created.ID, "username="+created.Username)
	return created.View(), nil
}

func (s *Service) UpdateUser(ctx context.Context, id int, req domain.UserUpdateRequest) (domain.UserView, error) {
	if err := validateStruct(req); err != nil {
		return domain.UserView{}, err
	}

	existing, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return domain.UserView{}, err
	}

	updated := *existing
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.UserView{}, fmt.Errorf("hash password: %w", err)
		}
		updated.Password = string(hash)
	}
	if req.Roles != nil {
		roles, err := normalizeRoles(*req.Roles)
		if err != nil {
			return domain.UserView{}, err
		}
		updated.Roles = roles
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateUser(ctx, id, updated)
	if err != nil {
		return domain.UserView{}, err
	}

	s.logAudit(ctx, "user_update", "user", saved.ID, "username="+saved.Username)
	return saved.View(), nil
}

func (s *Service) DeleteUser(ctx context.Context, id int) error {
	removed, err := s.repo.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return store.ErrNotFound
	}
	s.logAudit(ctx, "user_delete", "user", id, "")
	return nil
}
