package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sorpresa-shop/backend/internal/domain"
)

// NotificationHandler turns order.captured events into confirmation emails.
// Capture already happened by the time an event arrives, so failures here
// only delay the notification; the consumer retries delivery.
type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderCapturedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order captured event: %w", err)
	}

	h.logger.Info("processing order captured event",
		"order_id", event.OrderID, "customer_id", event.CustomerID, "total", event.Total)

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderCapturedEvent) error {
	var lines []string
	for _, item := range event.Items {
		lines = append(lines, fmt.Sprintf("- product %s x%d: %.2f", item.ProductID, item.Quantity, item.Subtotal))
	}

	body := map[string]string{
		"to":      event.CustomerID + "@example.com",
		"subject": "Order confirmation: " + event.OrderID,
		"body": fmt.Sprintf("Your payment was received (reference %s).\n%s\nTotal charged: %.2f",
			event.CaptureID, strings.Join(lines, "\n"), event.Total),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
