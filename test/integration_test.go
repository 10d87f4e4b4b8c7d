//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sorpresa-shop/backend/internal/address"
	"github.com/sorpresa-shop/backend/internal/cart"
	"github.com/sorpresa-shop/backend/internal/catalog"
	"github.com/sorpresa-shop/backend/internal/checkout"
	"github.com/sorpresa-shop/backend/internal/domain"
	"github.com/sorpresa-shop/backend/internal/orders"
	"github.com/sorpresa-shop/backend/internal/paypal"
	"github.com/sorpresa-shop/backend/internal/sales"
)

// fakePayPal emulates the two gateway endpoints the checkout flow touches. It
// remembers the total sent at order creation and echoes it back at capture.
type fakePayPal struct {
	mu     sync.Mutex
	totals map[string]string
	server *httptest.Server
}

func newFakePayPal() *fakePayPal {
	f := &fakePayPal{totals: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"test-token","expires_in":3600}`)
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PurchaseUnits []struct {
				Amount struct {
					Value string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.PurchaseUnits) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		orderID := "GW-" + uuid.New().String()
		f.mu.Lock()
		f.totals[orderID] = req.PurchaseUnits[0].Amount.Value
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": orderID})
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		orderID := r.PathValue("id")
		f.mu.Lock()
		total, ok := f.totals[orderID]
		f.mu.Unlock()
		if !ok {
			http.Error(w, "unknown order", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{
			"id": %q,
			"purchase_units": [{
				"payments": {"captures": [{"id": "CAP-%s", "amount": {"currency_code": "USD", "value": %q}}]}
			}]
		}`, orderID, orderID, total)
	})

	f.server = httptest.NewServer(mux)
	return f
}

func (f *fakePayPal) Close() { f.server.Close() }

type env struct {
	catalogRepo  *catalog.Repository
	cartRepo     *cart.Repository
	addressRepo  *address.Repository
	salesRepo    *sales.Repository
	ordersRepo   *orders.Repository
	checkoutRepo *checkout.Repository
	service      *checkout.Service
	gateway      *fakePayPal
}

func setupEnv(ctx context.Context, t *testing.T) *env {
	t.Helper()

	pg := SetupPostgres(ctx, t)
	t.Cleanup(pg.Cleanup)

	db := OpenDB(t, pg.ConnStr)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gateway := newFakePayPal()
	t.Cleanup(gateway.Close)

	catalogRepo := catalog.NewRepository(db)
	cartRepo := cart.NewRepository(db)
	addressRepo := address.NewRepository(db)
	salesRepo := sales.NewRepository(db)
	ordersRepo := orders.NewRepository(db)
	checkoutRepo := checkout.NewRepository(db, catalogRepo, salesRepo)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	paypalClient := paypal.NewClient(gateway.server.URL, "test-client", "test-secret", httpClient)

	service := checkout.NewService(
		checkoutRepo, catalogRepo, addressRepo, cartRepo, paypalClient, nil,
		"http://localhost/payment-success", "http://localhost/cart", logger,
	)

	return &env{
		catalogRepo:  catalogRepo,
		cartRepo:     cartRepo,
		addressRepo:  addressRepo,
		salesRepo:    salesRepo,
		ordersRepo:   ordersRepo,
		checkoutRepo: checkoutRepo,
		service:      service,
		gateway:      gateway,
	}
}

func seedProduct(ctx context.Context, t *testing.T, e *env, name string, price float64, stock, discount int) *domain.Product {
	t.Helper()

	p := &domain.Product{
		Name:        name,
		Description: "integration test product",
		Price:       price,
		Stock:       stock,
		Category:    "test",
		Discount:    discount,
		Images:      []string{"https://example.com/" + name + ".jpg"},
	}
	if err := e.catalogRepo.Create(ctx, p); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return p
}

func seedAddress(ctx context.Context, t *testing.T, e *env, userID string) *domain.Address {
	t.Helper()

	a := &domain.Address{
		UserID:        userID,
		RecipientName: "Test Recipient",
		Street:        "Av. Siempre Viva",
		Number:        "742",
		City:          "Springfield",
		State:         "SP",
		Country:       "MX",
		PostalCode:    "12345",
	}
	if err := e.addressRepo.Create(ctx, a); err != nil {
		t.Fatalf("failed to seed address: %v", err)
	}
	return a
}

func clientItemsFromCart(c *domain.Cart) []checkout.ClientItem {
	items := make([]checkout.ClientItem, 0, len(c.Items))
	for _, line := range c.Items {
		items = append(items, checkout.ClientItem{
			ProductID: line.ProductID,
			Price:     line.Price,
			Discount:  line.Discount,
			Quantity:  line.Quantity,
		})
	}
	return items
}

func TestCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	userID := "cust-checkout-1"

	product := seedProduct(ctx, t, e, "Taza sorpresa", 150, 20, 0)
	addr := seedAddress(ctx, t, e, userID)

	if _, err := e.cartRepo.AddItem(ctx, userID, product.ID, 2); err != nil {
		t.Fatalf("failed to add item to cart: %v", err)
	}
	userCart, err := e.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}

	// 2 x 150 = 300 subtotal, below the free-shipping threshold.
	clientTotal := 399.0
	gatewayOrderID, err := e.service.CreatePaymentOrder(ctx, userID, clientItemsFromCart(userCart), clientTotal, addr.ID)
	if err != nil {
		t.Fatalf("create payment order failed: %v", err)
	}
	if gatewayOrderID == "" {
		t.Fatal("expected non-empty gateway order id")
	}

	order, err := e.service.CaptureOrder(ctx, userID, gatewayOrderID, addr.ID)
	if err != nil {
		t.Fatalf("capture order failed: %v", err)
	}

	if order.Status != domain.OrderStatusEnProceso {
		t.Fatalf("expected status %s, got %s", domain.OrderStatusEnProceso, order.Status)
	}
	if order.Total != clientTotal {
		t.Fatalf("expected captured total %.2f, got %.2f", clientTotal, order.Total)
	}
	if order.CaptureID == "" {
		t.Fatal("expected capture id to be set")
	}

	persisted, err := e.ordersRepo.GetByID(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("failed to load persisted order: %v", err)
	}
	if persisted == nil {
		t.Fatal("order not found in database")
	}
	if len(persisted.Items) != 1 || persisted.Items[0].Quantity != 2 {
		t.Fatalf("unexpected order items: %+v", persisted.Items)
	}

	refreshed, err := e.catalogRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to reload product: %v", err)
	}
	if refreshed.Stock != 18 {
		t.Fatalf("expected stock 18 after capture, got %d", refreshed.Stock)
	}

	clearedCart, err := e.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to reload cart: %v", err)
	}
	if clearedCart == nil || len(clearedCart.Items) != 0 {
		t.Fatalf("expected empty cart after capture, got %+v", clearedCart)
	}

	productSales, err := e.salesRepo.ListByProduct(ctx, product.ID, 10)
	if err != nil {
		t.Fatalf("failed to list sales: %v", err)
	}
	if len(productSales) != 1 {
		t.Fatalf("expected 1 sale row, got %d", len(productSales))
	}
	if productSales[0].Quantity != 2 || productSales[0].CustomerID != userID {
		t.Fatalf("unexpected sale row: %+v", productSales[0])
	}

	snap, err := e.checkoutRepo.GetSnapshot(ctx, gatewayOrderID)
	if err != nil {
		t.Fatalf("failed to check snapshot: %v", err)
	}
	if snap != nil {
		t.Fatal("expected snapshot to be deleted after capture")
	}
}

func TestCaptureRollsBackWhenStockRunsOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	userID := "cust-rollback-1"

	product := seedProduct(ctx, t, e, "Peluche edicion limitada", 600, 3, 0)
	addr := seedAddress(ctx, t, e, userID)

	if _, err := e.cartRepo.AddItem(ctx, userID, product.ID, 3); err != nil {
		t.Fatalf("failed to add item to cart: %v", err)
	}
	userCart, err := e.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}

	// 3 x 600 = 1800, above the free-shipping threshold.
	gatewayOrderID, err := e.service.CreatePaymentOrder(ctx, userID, clientItemsFromCart(userCart), 1800, addr.ID)
	if err != nil {
		t.Fatalf("create payment order failed: %v", err)
	}

	// Another sale drains the stock between order creation and capture.
	ok, err := e.catalogRepo.DecrementStockIfAvailable(ctx, product.ID, 2)
	if err != nil || !ok {
		t.Fatalf("failed to drain stock: ok=%v err=%v", ok, err)
	}

	_, err = e.service.CaptureOrder(ctx, userID, gatewayOrderID, addr.ID)
	var recErr *domain.ReconciliationError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected ReconciliationError, got %v", err)
	}
	if recErr.GatewayOrderID != gatewayOrderID || recErr.CapturedAmount != 1800 {
		t.Fatalf("reconciliation error missing context: %+v", recErr)
	}

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError as cause, got %v", err)
	}

	orderPage, err := e.ordersRepo.ListForUser(ctx, userID, 1, 10)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if orderPage.Total != 0 {
		t.Fatalf("expected no persisted orders after rollback, got %d", orderPage.Total)
	}

	refreshed, err := e.catalogRepo.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to reload product: %v", err)
	}
	if refreshed.Stock != 1 {
		t.Fatalf("expected stock 1 after rollback, got %d", refreshed.Stock)
	}

	keptCart, err := e.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to reload cart: %v", err)
	}
	if keptCart == nil || len(keptCart.Items) != 1 {
		t.Fatalf("expected cart to survive rollback, got %+v", keptCart)
	}

	productSales, err := e.salesRepo.ListByProduct(ctx, product.ID, 10)
	if err != nil {
		t.Fatalf("failed to list sales: %v", err)
	}
	if len(productSales) != 0 {
		t.Fatalf("expected no sale rows after rollback, got %d", len(productSales))
	}
}

func TestCartQuantityAccumulation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	userID := "cust-cart-1"

	product := seedProduct(ctx, t, e, "Llavero", 50, 5, 0)

	if _, err := e.cartRepo.AddItem(ctx, userID, product.ID, 2); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if _, err := e.cartRepo.AddItem(ctx, userID, product.ID, 3); err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	userCart, err := e.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}
	if len(userCart.Items) != 1 {
		t.Fatalf("expected a single accumulated line, got %d", len(userCart.Items))
	}
	if userCart.Items[0].Quantity != 5 {
		t.Fatalf("expected accumulated quantity 5, got %d", userCart.Items[0].Quantity)
	}

	// One more unit would exceed stock; the cart must be left untouched.
	_, err = e.cartRepo.AddItem(ctx, userID, product.ID, 1)
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 5 || stockErr.Requested != 6 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}

	unchanged, err := e.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to reload cart: %v", err)
	}
	if unchanged.Items[0].Quantity != 5 {
		t.Fatalf("expected quantity to stay 5, got %d", unchanged.Items[0].Quantity)
	}
}

func TestOrderOwnershipScope(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	userID := "cust-owner-1"

	product := seedProduct(ctx, t, e, "Marco de fotos", 300, 10, 0)
	addr := seedAddress(ctx, t, e, userID)

	if _, err := e.cartRepo.AddItem(ctx, userID, product.ID, 1); err != nil {
		t.Fatalf("failed to add item to cart: %v", err)
	}
	userCart, err := e.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}

	gatewayOrderID, err := e.service.CreatePaymentOrder(ctx, userID, clientItemsFromCart(userCart), 399, addr.ID)
	if err != nil {
		t.Fatalf("create payment order failed: %v", err)
	}
	order, err := e.service.CaptureOrder(ctx, userID, gatewayOrderID, addr.ID)
	if err != nil {
		t.Fatalf("capture order failed: %v", err)
	}

	other, err := e.ordersRepo.GetByID(ctx, "somebody-else", order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other != nil {
		t.Fatal("expected another user's lookup to find nothing")
	}

	own, err := e.ordersRepo.GetByID(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("failed to load own order: %v", err)
	}
	if own == nil {
		t.Fatal("expected owner's lookup to find the order")
	}
}

func TestStatusTransitionsAndHistory(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	userID := "cust-status-1"

	product := seedProduct(ctx, t, e, "Caja de chocolates", 450, 10, 0)
	addr := seedAddress(ctx, t, e, userID)

	if _, err := e.cartRepo.AddItem(ctx, userID, product.ID, 1); err != nil {
		t.Fatalf("failed to add item to cart: %v", err)
	}
	userCart, err := e.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("failed to load cart: %v", err)
	}

	gatewayOrderID, err := e.service.CreatePaymentOrder(ctx, userID, clientItemsFromCart(userCart), 549, addr.ID)
	if err != nil {
		t.Fatalf("create payment order failed: %v", err)
	}
	order, err := e.service.CaptureOrder(ctx, userID, gatewayOrderID, addr.ID)
	if err != nil {
		t.Fatalf("capture order failed: %v", err)
	}

	if _, err := e.ordersRepo.SetStatus(ctx, order.ID, domain.OrderStatusEnCamino, "left warehouse", "admin-1"); err != nil {
		t.Fatalf("EN_PROCESO -> EN_CAMINO failed: %v", err)
	}
	if _, err := e.ordersRepo.SetStatus(ctx, order.ID, domain.OrderStatusEntregado, "", "admin-1"); err != nil {
		t.Fatalf("EN_CAMINO -> ENTREGADO failed: %v", err)
	}

	_, err = e.ordersRepo.SetStatus(ctx, order.ID, domain.OrderStatusCancelado, "", "admin-1")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from terminal state, got %v", err)
	}

	history, err := e.ordersRepo.StatusHistory(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to load history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	if history[0].PreviousStatus != domain.OrderStatusEnProceso || history[0].NewStatus != domain.OrderStatusEnCamino {
		t.Fatalf("unexpected first history row: %+v", history[0])
	}
	if history[1].NewStatus != domain.OrderStatusEntregado {
		t.Fatalf("unexpected second history row: %+v", history[1])
	}
	if history[0].Comment != "left warehouse" {
		t.Fatalf("expected comment to be recorded, got %q", history[0].Comment)
	}
}

func TestKafkaConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	if len(brokers) == 0 {
		t.Fatal("expected at least one broker")
	}

	t.Logf("kafka brokers: %v", brokers)
}
