package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"glowpos/backend/internal/cache"
	"glowpos/backend/internal/domain"
	"glowpos/backend/internal/store"
	"glowpos/backend/internal/store/jsonfile"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	repo, err := jsonfile.New(t.TempDir())
	if err != nil {
		t.Fatalf("jsonfile store: %v", err)
	}
	return New(repo, cache.Noop{}, 5*time.Second)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "ava",
		Roles:    []string{domain.RoleAdmin},
	})
}

func cashierCtx(username string) context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: username,
		Roles:    []string{domain.RoleCashier},
	})
}

func stockManagerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "sam",
		Roles:    []string{domain.RoleStockManager},
	})
}

func mustCreateProduct(t *testing.T, svc *Service, name string, stock, minStock int, priceCents int64, discountPercent float64) domain.Product {
	t.Helper()

	product, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:              name,
		Category:          "serum",
		Stock:             stock,
		MinStock:          minStock,
		SellingPriceCents: priceCents,
		DiscountPercent:   discountPercent,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

func mustOpenBatch(t *testing.T, svc *Service, ctx context.Context, openingCash int64) domain.Batch {
	t.Helper()

	batch, err := svc.OpenBatch(ctx, domain.BatchOpenRequest{OpeningCashCents: openingCash})
	if err != nil {
		t.Fatalf("open batch: %v", err)
	}
	return batch
}

func TestProductStatusDerivation(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		stock    int
		minStock int
		want     string
	}{
		{0, 5, "out_of_stock"},
		{3, 5, "low_stock"},
		{5, 5, "in_stock"},
		{12, 5, "in_stock"},
	}
	for _, tc := range cases {
		product := mustCreateProduct(t, svc, "Hydra Serum", tc.stock, tc.minStock, 2500, 0)
		if product.Status != tc.want {
			t.Fatalf("stock=%d min=%d: expected status %s, got %s", tc.stock, tc.minStock, tc.want, product.Status)
		}
	}
}

func TestLowStockProducts(t *testing.T) {
	svc := newTestService(t)

	mustCreateProduct(t, svc, "Plenty", 20, 5, 1000, 0)
	low := mustCreateProduct(t, svc, "Scarce", 2, 5, 1000, 0)
	gone := mustCreateProduct(t, svc, "Gone", 0, 5, 1000, 0)

	products, err := svc.LowStockProducts(context.Background())
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 low-stock products, got %d", len(products))
	}
	ids := map[int]bool{products[0].ID: true, products[1].ID: true}
	if !ids[low.ID] || !ids[gone.ID] {
		t.Fatalf("expected products %d and %d, got %+v", low.ID, gone.ID, products)
	}
}

func TestCreateProductRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{
		Name:     "No Price",
		Category: "serum",
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPurchaseOrderPendingForStockManager(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Toner", 10, 3, 1500, 0)

	po, err := svc.CreatePurchaseOrder(stockManagerCtx(), domain.PurchaseOrderCreateRequest{
		Supplier: "Dewy Labs",
		Items: []domain.PurchaseOrderItem{
			{ProductID: product.ID, Qty: 10, UnitCostCents: 800},
		},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}
	if po.Status != domain.POStatusPending {
		t.Fatalf("expected pending, got %s", po.Status)
	}
	if po.ApprovedBy != "" {
		t.Fatalf("pending order must not carry an approver, got %q", po.ApprovedBy)
	}
	if po.TotalCents != 8000 {
		t.Fatalf("expected total 8000, got %d", po.TotalCents)
	}
	if po.Items[0].ProductName != "Toner" {
		t.Fatalf("expected product name resolved from catalog, got %q", po.Items[0].ProductName)
	}
}

func TestPurchaseOrderAutoApprovedWhenAdminInRoleSet(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Cleanser", 10, 3, 1200, 0)

	// Admin is not the first role; any position in the set must trigger
	// auto-approval.
	ctx := WithActor(context.Background(), domain.Actor{
		Username: "morgan",
		Roles:    []string{domain.RoleStockManager, domain.RoleAdmin},
	})

	po, err := svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		Supplier: "Dewy Labs",
		Items: []domain.PurchaseOrderItem{
			{ProductID: product.ID, Qty: 5, UnitCostCents: 600},
		},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}
	if po.Status != domain.POStatusApproved {
		t.Fatalf("expected approved, got %s", po.Status)
	}
	if po.ApprovedBy != "morgan" {
		t.Fatalf("expected creator recorded as approver, got %q", po.ApprovedBy)
	}
}

func TestPurchaseOrderRejectsUnknownProduct(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreatePurchaseOrder(adminCtx(), domain.PurchaseOrderCreateRequest{
		Supplier: "Dewy Labs",
		Items: []domain.PurchaseOrderItem{
			{ProductID: 999, Qty: 1, UnitCostCents: 100},
		},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown product, got %v", err)
	}
}

func TestApproveAndReceiveLifecycle(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Mask", 4, 3, 2000, 0)

	po, err := svc.CreatePurchaseOrder(stockManagerCtx(), domain.PurchaseOrderCreateRequest{
		Supplier: "Dewy Labs",
		Items: []domain.PurchaseOrderItem{
			{ProductID: product.ID, Qty: 6, UnitCostCents: 900},
		},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}

	// Receiving a pending order must be rejected.
	if _, err := svc.ReceivePurchaseOrder(stockManagerCtx(), po.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict receiving pending order, got %v", err)
	}

	approved, err := svc.ApprovePurchaseOrder(adminCtx(), po.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != domain.POStatusApproved || approved.ApprovedBy != "ava" {
		t.Fatalf("unexpected approved order: %+v", approved)
	}

	// Double approval must be rejected.
	if _, err := svc.ApprovePurchaseOrder(adminCtx(), po.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on second approval, got %v", err)
	}

	received, err := svc.ReceivePurchaseOrder(stockManagerCtx(), po.ID)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if received.Status != domain.POStatusReceived || received.ReceivedAt == nil {
		t.Fatalf("unexpected received order: %+v", received)
	}

	restocked, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if restocked.Stock != 10 {
		t.Fatalf("expected stock 10 after receive, got %d", restocked.Stock)
	}
}

func TestApproveRequiresAdmin(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Oil", 10, 3, 1800, 0)

	po, err := svc.CreatePurchaseOrder(stockManagerCtx(), domain.PurchaseOrderCreateRequest{
		Supplier: "Dewy Labs",
		Items:    []domain.PurchaseOrderItem{{ProductID: product.ID, Qty: 1, UnitCostCents: 500}},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}

	if _, err := svc.ApprovePurchaseOrder(stockManagerCtx(), po.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden error approving as stock manager, got %v", err)
	}
}

func TestPurchaseOrderNumbersNeverRepeat(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Essence", 10, 3, 1500, 0)

	first, err := svc.CreatePurchaseOrder(adminCtx(), domain.PurchaseOrderCreateRequest{
		Supplier: "Dewy Labs",
		Items:    []domain.PurchaseOrderItem{{ProductID: product.ID, Qty: 1, UnitCostCents: 100}},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}
	second, err := svc.CreatePurchaseOrder(adminCtx(), domain.PurchaseOrderCreateRequest{
		Supplier: "Dewy Labs",
		Items:    []domain.PurchaseOrderItem{{ProductID: product.ID, Qty: 1, UnitCostCents: 100}},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}
	if first.PONumber == second.PONumber {
		t.Fatalf("expected distinct numbers, both %s", first.PONumber)
	}
	if !strings.HasPrefix(second.PONumber, "PO-") {
		t.Fatalf("unexpected number format: %s", second.PONumber)
	}
}

func TestTransactionRequiresOpenBatch(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Ampoule", 5, 2, 3000, 0)
	ctx := cashierCtx("casey")

	_, err := svc.CreateTransaction(ctx, domain.TransactionCreateRequest{
		Items:               []domain.TransactionItem{{ProductID: product.ID, Qty: 1}},
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 10000,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict without an open batch, got %v", err)
	}
}

func TestTransactionPricingAndBatchRollup(t *testing.T) {
	svc := newTestService(t)
	// Selling price 2000, no discount; default settings tax 10%.
	product := mustCreateProduct(t, svc, "Cream", 10, 2, 2000, 0)
	ctx := cashierCtx("casey")
	batch := mustOpenBatch(t, svc, ctx, 5000)

	txn, err := svc.CreateTransaction(ctx, domain.TransactionCreateRequest{
		Items:               []domain.TransactionItem{{ProductID: product.ID, Qty: 2}},
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 5000,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	if txn.SubtotalCents != 4000 {
		t.Fatalf("expected subtotal 4000, got %d", txn.SubtotalCents)
	}
	if txn.TaxCents != 400 {
		t.Fatalf("expected tax 400, got %d", txn.TaxCents)
	}
	if txn.TotalCents != 4400 {
		t.Fatalf("expected total 4400, got %d", txn.TotalCents)
	}
	if txn.ChangeCents != 600 {
		t.Fatalf("expected change 600, got %d", txn.ChangeCents)
	}
	if txn.BatchID != batch.ID {
		t.Fatalf("expected batch id %d, got %d", batch.ID, txn.BatchID)
	}
	if txn.Reference == "" {
		t.Fatalf("expected a receipt reference")
	}

	sold, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if sold.Stock != 8 {
		t.Fatalf("expected stock 8 after sale, got %d", sold.Stock)
	}

	rolled, err := svc.GetBatch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if rolled.TotalSalesCents != 4400 || rolled.CashSalesCents != 4400 || rolled.TransactionCount != 1 {
		t.Fatalf("unexpected batch rollup: %+v", rolled)
	}
}

func TestTransactionAppliesCatalogDiscount(t *testing.T) {
	svc := newTestService(t)
	// Selling price 1000 with 10% discount; tax 10% of the discounted line.
	product := mustCreateProduct(t, svc, "Sale Serum", 5, 2, 1000, 10)
	ctx := cashierCtx("casey")
	mustOpenBatch(t, svc, ctx, 0)

	txn, err := svc.CreateTransaction(ctx, domain.TransactionCreateRequest{
		Items:         []domain.TransactionItem{{ProductID: product.ID, Qty: 1}},
		PaymentMethod: domain.PaymentCard,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if txn.SubtotalCents != 900 {
		t.Fatalf("expected discounted subtotal 900, got %d", txn.SubtotalCents)
	}
	if txn.TotalCents != 990 {
		t.Fatalf("expected total 990, got %d", txn.TotalCents)
	}
	// Card payments settle exactly, no change.
	if txn.AmountReceivedCents != 990 || txn.ChangeCents != 0 {
		t.Fatalf("unexpected card settlement: received=%d change=%d", txn.AmountReceivedCents, txn.ChangeCents)
	}
}

func TestTransactionInsufficientStock(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Limited", 1, 1, 1000, 0)
	ctx := cashierCtx("casey")
	mustOpenBatch(t, svc, ctx, 0)

	_, err := svc.CreateTransaction(ctx, domain.TransactionCreateRequest{
		Items:               []domain.TransactionItem{{ProductID: product.ID, Qty: 3}},
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 10000,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for insufficient stock, got %v", err)
	}

	// The failed sale must not touch stock.
	untouched, err := svc.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if untouched.Stock != 1 {
		t.Fatalf("expected stock unchanged at 1, got %d", untouched.Stock)
	}
}

func TestTransactionCashShortfallRejected(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Pricey", 5, 2, 10000, 0)
	ctx := cashierCtx("casey")
	mustOpenBatch(t, svc, ctx, 0)

	_, err := svc.CreateTransaction(ctx, domain.TransactionCreateRequest{
		Items:               []domain.TransactionItem{{ProductID: product.ID, Qty: 1}},
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 5000,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for short cash, got %v", err)
	}
}

func TestTransactionsByDateRangeInclusive(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Daily", 10, 2, 1000, 0)
	ctx := cashierCtx("casey")
	mustOpenBatch(t, svc, ctx, 0)

	if _, err := svc.CreateTransaction(ctx, domain.TransactionCreateRequest{
		Items:               []domain.TransactionItem{{ProductID: product.ID, Qty: 1}},
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 2000,
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	matched, err := svc.TransactionsByDateRange(context.Background(), today, today)
	if err != nil {
		t.Fatalf("date range: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("expected today's transaction in a same-day range, got %d", len(matched))
	}

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	twoDaysAgo := time.Now().UTC().AddDate(0, 0, -2).Format("2006-01-02")
	matched, err = svc.TransactionsByDateRange(context.Background(), twoDaysAgo, yesterday)
	if err != nil {
		t.Fatalf("date range: %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("expected no transactions before today, got %d", len(matched))
	}

	if _, err := svc.TransactionsByDateRange(context.Background(), today, "not-a-date"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for malformed date, got %v", err)
	}
	if _, err := svc.TransactionsByDateRange(context.Background(), today, twoDaysAgo); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
}

func TestOpenBatchRejectsSecondOpenForSameCashier(t *testing.T) {
	svc := newTestService(t)
	ctx := cashierCtx("casey")
	mustOpenBatch(t, svc, ctx, 1000)

	if _, err := svc.OpenBatch(ctx, domain.BatchOpenRequest{OpeningCashCents: 500}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on second open batch, got %v", err)
	}

	// A different cashier can open their own batch.
	if _, err := svc.OpenBatch(cashierCtx("jordan"), domain.BatchOpenRequest{OpeningCashCents: 500}); err != nil {
		t.Fatalf("second cashier open batch: %v", err)
	}
}

func TestCloseBatchBalancedDrawer(t *testing.T) {
	svc := newTestService(t)
	product := mustCreateProduct(t, svc, "Cream", 10, 2, 2000, 0)
	ctx := cashierCtx("casey")
	batch := mustOpenBatch(t, svc, ctx, 5000)

	if _, err := svc.CreateTransaction(ctx, domain.TransactionCreateRequest{
		Items:               []domain.TransactionItem{{ProductID: product.ID, Qty: 1}},
		PaymentMethod:       domain.PaymentCash,
		AmountReceivedCents: 2200,
	}); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	// Expected drawer: 5000 opening + 2200 cash sale.
	resp, err := svc.CloseBatch(ctx, batch.ID, domain.BatchCloseRequest{ClosingCashCents: 7200})
	if err != nil {
		t.Fatalf("close batch: %v", err)
	}
	if resp.DifferenceCents != 0 || resp.ExpectedCents != 7200 {
		t.Fatalf("unexpected reconciliation: %+v", resp)
	}
	if resp.Batch.Status != domain.BatchStatusClosed || resp.Batch.ClosedAt == nil {
		t.Fatalf("batch not closed: %+v", resp.Batch)
	}

	// Closing again must conflict.
	if _, err := svc.CloseBatch(ctx, batch.ID, domain.BatchCloseRequest{ClosingCashCents: 7200}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict closing a closed batch, got %v", err)
	}
}

func TestCloseBatchDiscrepancyRequiresConfirmation(t *testing.T) {
	svc := newTestService(t)
	ctx := cashierCtx("casey")
	batch := mustOpenBatch(t, svc, ctx, 5000)

	// Drawer is 2000 short.
	_, err := svc.CloseBatch(ctx, batch.ID, domain.BatchCloseRequest{ClosingCashCents: 3000})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for unconfirmed discrepancy, got %v", err)
	}
	if !strings.Contains(err.Error(), "-2000") {
		t.Fatalf("expected difference reported in error, got %q", err.Error())
	}

	// Batch must still be open after the rejected close.
	still, err := svc.GetBatch(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if still.Status != domain.BatchStatusOpen {
		t.Fatalf("expected batch still open, got %s", still.Status)
	}

	resp, err := svc.CloseBatch(ctx, batch.ID, domain.BatchCloseRequest{
		ClosingCashCents:   3000,
		ConfirmDiscrepancy: true,
		Remarks:            "till shortage, reported",
	})
	if err != nil {
		t.Fatalf("confirmed close: %v", err)
	}
	if resp.DifferenceCents != -2000 {
		t.Fatalf("expected difference -2000, got %d", resp.DifferenceCents)
	}
}

func TestStaffEmployeeIDsSurviveDeletion(t *testing.T) {
	svc := newTestService(t)
	ctx := adminCtx()

	first, err := svc.CreateStaff(ctx, domain.StaffCreateRequest{Name: "Riley", Role: "esthetician"})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if err := svc.DeleteStaff(ctx, first.ID); err != nil {
		t.Fatalf("delete staff: %v", err)
	}
	second, err := svc.CreateStaff(ctx, domain.StaffCreateRequest{Name: "Quinn", Role: "cashier"})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if first.EmployeeID == second.EmployeeID {
		t.Fatalf("employee id %s reissued after deletion", first.EmployeeID)
	}
	if !strings.HasPrefix(second.EmployeeID, "EMP-") {
		t.Fatalf("unexpected employee id format: %s", second.EmployeeID)
	}
	if second.Status != domain.StaffStatusActive {
		t.Fatalf("expected new staff active, got %s", second.Status)
	}
}

func TestUserLifecycleNeverExposesPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := adminCtx()

	view, err := svc.CreateUser(ctx, domain.UserCreateRequest{
		Username: "casey",
		Password: "hunter2secret",
		Roles:    []string{domain.RoleCashier},
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if view.Username != "casey" || !view.Active {
		t.Fatalf("unexpected user view: %+v", view)
	}

	if _, err := svc.CreateUser(ctx, domain.UserCreateRequest{
		Username: "CASEY",
		Password: "anotherpass",
		Roles:    []string{domain.RoleCashier},
	}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}

	if _, err := svc.CreateUser(ctx, domain.UserCreateRequest{
		Username: "drew",
		Password: "password1",
		Roles:    []string{"Janitor"},
	}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}

	views, err := svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 user, got %d", len(views))
	}

	active := false
	updated, err := svc.UpdateUser(ctx, view.ID, domain.UserUpdateRequest{Active: &active})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Active {
		t.Fatalf("expected user deactivated")
	}
}

func TestSettingsDefaultsAndPartialUpdate(t *testing.T) {
	svc := newTestService(t)

	settings, err := svc.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.TaxRatePercent != 10 {
		t.Fatalf("expected default tax rate 10, got %v", settings.TaxRatePercent)
	}

	rate := 7.5
	updated, err := svc.UpdateSettings(adminCtx(), domain.SettingsUpdateRequest{TaxRatePercent: &rate})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if updated.TaxRatePercent != 7.5 {
		t.Fatalf("expected tax rate 7.5, got %v", updated.TaxRatePercent)
	}
	if updated.StoreName != settings.StoreName {
		t.Fatalf("partial update must not clear store name, got %q", updated.StoreName)
	}
}
