package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/sorpresa-shop/backend/internal/domain"
	"github.com/sorpresa-shop/backend/internal/paypal"
)

const currency = "USD"

type Catalog interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type AddressStore interface {
	GetByID(ctx context.Context, id string) (*domain.Address, error)
}

type CartStore interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Cart, error)
}

type Gateway interface {
	CreateOrder(ctx context.Context, params paypal.CreateOrderParams) (string, error)
	CaptureOrder(ctx context.Context, gatewayOrderID string) (*paypal.CaptureResult, error)
}

// Store is the checkout-owned persistence: snapshots plus the atomic capture
// write set.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *domain.CheckoutSnapshot) error
	GetSnapshot(ctx context.Context, gatewayOrderID string) (*domain.CheckoutSnapshot, error)
	DeleteSnapshot(ctx context.Context, gatewayOrderID string) error
	PersistCapture(ctx context.Context, order *domain.Order, sales []domain.Sale) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Service coordinates cart, catalog, addresses, the payment gateway and the
// order/sales ledgers to run the two-phase checkout.
type Service struct {
	store     Store
	catalog   Catalog
	addresses AddressStore
	carts     CartStore
	gateway   Gateway
	publisher Publisher
	logger    *slog.Logger

	returnURL string
	cancelURL string

	captures       metric.Int64Counter
	reconciliation metric.Int64Counter
}

func NewService(store Store, catalogStore Catalog, addresses AddressStore, carts CartStore, gateway Gateway, publisher Publisher, returnURL, cancelURL string, logger *slog.Logger) *Service {
	meter := otel.Meter("checkout")
	captures, _ := meter.Int64Counter("checkout.captures",
		metric.WithDescription("Completed payment captures"))
	reconciliation, _ := meter.Int64Counter("checkout.reconciliation_errors",
		metric.WithDescription("Captures whose persistence failed and need manual reconciliation"))

	return &Service{
		store:          store,
		catalog:        catalogStore,
		addresses:      addresses,
		carts:          carts,
		gateway:        gateway,
		publisher:      publisher,
		logger:         logger,
		returnURL:      returnURL,
		cancelURL:      cancelURL,
		captures:       captures,
		reconciliation: reconciliation,
	}
}

// ClientItem is what the client claims is in its cart. Prices and discounts
// are display figures only; money math always re-reads the catalog.
type ClientItem struct {
	ProductID string  `json:"product_id"`
	Price     float64 `json:"price"`
	Discount  int     `json:"discount"`
	Quantity  int     `json:"quantity"`
}

// CreatePaymentOrder prices the user's cart server-side, verifies the
// client-displayed total, and registers a hosted payment order with the
// gateway. Quantities come from the stored cart and prices are re-read from
// the catalog; the client's items and total are used only to detect a stale
// or tampered display. The priced lines are snapshotted under the returned
// gateway order id; nothing else is persisted.
func (s *Service) CreatePaymentOrder(ctx context.Context, userID string, clientItems []ClientItem, clientTotal float64, addressID string) (string, error) {
	if len(clientItems) == 0 {
		return "", domain.Validationf("items must be a non-empty list")
	}
	for _, item := range clientItems {
		if item.Quantity < 1 {
			return "", domain.Validationf("quantity must be a positive integer")
		}
	}
	if addressID == "" {
		return "", domain.Validationf("address_id is required")
	}

	cart, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return "", domain.ErrEmptyCart
	}

	snapItems := make([]domain.SnapshotItem, 0, len(cart.Items))
	gatewayItems := make([]paypal.ItemParam, 0, len(cart.Items))
	for _, line := range cart.Items {
		product, err := s.catalog.GetByID(ctx, line.ProductID)
		if err != nil {
			return "", fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		if product == nil || !product.Active {
			return "", fmt.Errorf("product %s: %w", line.ProductID, domain.ErrNotFound)
		}

		unitPrice := round2(product.DiscountedPrice())
		snapItems = append(snapItems, domain.SnapshotItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			Subtotal:    round2(unitPrice * float64(line.Quantity)),
		})
		gatewayItems = append(gatewayItems, paypal.ItemParam{
			Name:      product.Name,
			UnitPrice: unitPrice,
			Quantity:  line.Quantity,
			SKU:       product.ID,
		})
	}

	subtotal, shipping, total := ComputeTotal(snapItems)
	if math.Abs(total-clientTotal) > 0.01 {
		s.logger.Warn("checkout total mismatch",
			"user_id", userID, "client_total", clientTotal, "computed_total", total)
		return "", domain.ErrTotalMismatch
	}

	addr, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		return "", fmt.Errorf("load address %s: %w", addressID, err)
	}
	if addr == nil || addr.UserID != userID {
		return "", domain.ErrInvalidAddress
	}

	gatewayOrderID, err := s.gateway.CreateOrder(ctx, paypal.CreateOrderParams{
		Currency:      currency,
		Subtotal:      subtotal,
		Shipping:      shipping,
		Total:         total,
		RecipientName: addr.RecipientName,
		Address:       *addr,
		Items:         gatewayItems,
		ReturnURL:     s.returnURL,
		CancelURL:     s.cancelURL,
	})
	if err != nil {
		return "", &domain.PaymentError{Err: fmt.Errorf("create gateway order: %w", err)}
	}

	snap := &domain.CheckoutSnapshot{
		GatewayOrderID: gatewayOrderID,
		UserID:         userID,
		AddressID:      addressID,
		Items:          snapItems,
		Subtotal:       subtotal,
		Shipping:       shipping,
		Total:          total,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return "", fmt.Errorf("save checkout snapshot: %w", err)
	}

	s.logger.Info("payment order created",
		"user_id", userID, "gateway_order_id", gatewayOrderID, "total", total)

	return gatewayOrderID, nil
}

// CaptureOrder finalizes the payment with the gateway and persists the order,
// sales and stock changes as one unit. If funds are captured but persistence
// fails, the error is a ReconciliationError; it is never swallowed into a
// generic failure.
func (s *Service) CaptureOrder(ctx context.Context, userID, gatewayOrderID, addressID string) (*domain.Order, error) {
	if gatewayOrderID == "" || addressID == "" {
		return nil, domain.Validationf("order_id and address_id are required")
	}

	addr, err := s.addresses.GetByID(ctx, addressID)
	if err != nil {
		return nil, fmt.Errorf("load address %s: %w", addressID, err)
	}
	if addr == nil || addr.UserID != userID {
		return nil, domain.ErrInvalidAddress
	}

	snap, err := s.store.GetSnapshot(ctx, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("load checkout snapshot: %w", err)
	}
	if snap == nil || snap.UserID != userID || len(snap.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	capture, err := s.gateway.CaptureOrder(ctx, gatewayOrderID)
	if err != nil {
		return nil, &domain.PaymentError{GatewayOrderID: gatewayOrderID, Err: err}
	}

	// Funds are captured from here on; every failure below must surface with
	// enough context for manual reconciliation.
	items := make([]domain.OrderItem, 0, len(snap.Items))
	saleRows := make([]domain.Sale, 0, len(snap.Items))
	for _, line := range snap.Items {
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		})
		saleRows = append(saleRows, domain.Sale{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			SalePrice:  line.UnitPrice,
			Total:      line.Subtotal,
			CustomerID: userID,
		})
	}

	order := &domain.Order{
		CustomerID:     userID,
		AddressID:      addressID,
		GatewayOrderID: gatewayOrderID,
		CaptureID:      capture.CaptureID,
		Items:          items,
		Total:          capture.Amount,
		Status:         domain.OrderStatusEnProceso,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.PersistCapture(ctx, order, saleRows); err != nil {
		s.reconciliation.Add(ctx, 1)
		return nil, &domain.ReconciliationError{
			GatewayOrderID: gatewayOrderID,
			CaptureID:      capture.CaptureID,
			UserID:         userID,
			CapturedAmount: capture.Amount,
			Err:            err,
		}
	}

	if err := s.store.DeleteSnapshot(ctx, gatewayOrderID); err != nil {
		s.logger.Warn("failed to delete checkout snapshot", "gateway_order_id", gatewayOrderID, "error", err)
	}

	if s.publisher != nil {
		event := domain.OrderCapturedEvent{
			OrderID:        order.ID,
			GatewayOrderID: gatewayOrderID,
			CaptureID:      capture.CaptureID,
			CustomerID:     userID,
			Items:          order.Items,
			Total:          order.Total,
			Timestamp:      order.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
			s.logger.Error("failed to publish order captured event", "error", err, "order_id", order.ID)
		}
	}

	s.captures.Add(ctx, 1)
	s.logger.Info("order captured",
		"order_id", order.ID, "gateway_order_id", gatewayOrderID,
		"capture_id", capture.CaptureID, "user_id", userID, "total", order.Total)

	return order, nil
}
