package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sorpresa-shop/backend/internal/domain"
)

// Client is a thin adapter over the PayPal v2 Checkout REST API. It is
// constructed once at process start and injected where needed; there is no
// package-level client.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(baseURL, clientID, clientSecret string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
	}
}

type ItemParam struct {
	Name      string
	UnitPrice float64
	Quantity  int
	SKU       string
}

type CreateOrderParams struct {
	Currency      string
	Subtotal      float64
	Shipping      float64
	Total         float64
	RecipientName string
	Address       domain.Address
	Items         []ItemParam
	ReturnURL     string
	CancelURL     string
}

type CaptureResult struct {
	CaptureID string
	Amount    float64
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func newMoney(currency string, v float64) money {
	return money{CurrencyCode: currency, Value: strconv.FormatFloat(v, 'f', 2, 64)}
}

type createOrderRequest struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

type purchaseUnit struct {
	Amount   purchaseAmount `json:"amount"`
	Shipping *shippingInfo  `json:"shipping,omitempty"`
	Items    []lineItem     `json:"items,omitempty"`
}

type purchaseAmount struct {
	money
	Breakdown amountBreakdown `json:"breakdown"`
}

type amountBreakdown struct {
	ItemTotal money `json:"item_total"`
	Shipping  money `json:"shipping"`
}

type shippingInfo struct {
	Name    shippingName    `json:"name"`
	Address shippingAddress `json:"address"`
}

type shippingName struct {
	FullName string `json:"full_name"`
}

type shippingAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	AdminArea2   string `json:"admin_area_2"`
	AdminArea1   string `json:"admin_area_1"`
	PostalCode   string `json:"postal_code"`
	CountryCode  string `json:"country_code"`
}

type lineItem struct {
	Name       string `json:"name"`
	UnitAmount money  `json:"unit_amount"`
	Quantity   string `json:"quantity"`
	SKU        string `json:"sku"`
}

type applicationContext struct {
	ShippingPreference string `json:"shipping_preference"`
	UserAction         string `json:"user_action"`
	ReturnURL          string `json:"return_url"`
	CancelURL          string `json:"cancel_url"`
}

// CreateOrder registers a hosted payment order with PayPal and returns the
// gateway-assigned order id. Nothing is persisted on our side.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (string, error) {
	items := make([]lineItem, 0, len(params.Items))
	for _, item := range params.Items {
		items = append(items, lineItem{
			Name:       item.Name,
			UnitAmount: newMoney(params.Currency, item.UnitPrice),
			Quantity:   strconv.Itoa(item.Quantity),
			SKU:        item.SKU,
		})
	}

	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount: purchaseAmount{
				money: newMoney(params.Currency, params.Total),
				Breakdown: amountBreakdown{
					ItemTotal: newMoney(params.Currency, params.Subtotal),
					Shipping:  newMoney(params.Currency, params.Shipping),
				},
			},
			Shipping: &shippingInfo{
				Name: shippingName{FullName: params.RecipientName},
				Address: shippingAddress{
					AddressLine1: params.Address.Street + " " + params.Address.Number,
					AdminArea2:   params.Address.City,
					AdminArea1:   params.Address.State,
					PostalCode:   params.Address.PostalCode,
					CountryCode:  params.Address.Country,
				},
			},
			Items: items,
		}},
		ApplicationContext: applicationContext{
			ShippingPreference: "SET_PROVIDED_ADDRESS",
			UserAction:         "PAY_NOW",
			ReturnURL:          params.ReturnURL,
			CancelURL:          params.CancelURL,
		},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("paypal create order response missing order id")
	}

	return resp.ID, nil
}

type captureResponse struct {
	ID            string `json:"id"`
	PurchaseUnits []struct {
		Amount   *money `json:"amount"`
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Amount *money `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CaptureOrder finalizes a previously created order and extracts the captured
// monetary amount. A response without a parseable amount is an error, never a
// success.
func (c *Client) CaptureOrder(ctx context.Context, gatewayOrderID string) (*CaptureResult, error) {
	var resp captureResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(gatewayOrderID))
	if err := c.do(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	result := &CaptureResult{}

	var amount *money
	if len(resp.PurchaseUnits) > 0 {
		unit := resp.PurchaseUnits[0]
		if len(unit.Payments.Captures) > 0 {
			result.CaptureID = unit.Payments.Captures[0].ID
			amount = unit.Payments.Captures[0].Amount
		}
		if amount == nil {
			amount = unit.Amount
		}
	}
	if result.CaptureID == "" {
		result.CaptureID = resp.ID
	}

	if amount == nil {
		return nil, fmt.Errorf("capture response for order %s has no amount", gatewayOrderID)
	}

	value, err := strconv.ParseFloat(amount.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("capture response for order %s has unparseable amount %q: %w", gatewayOrderID, amount.Value, err)
	}
	result.Amount = value

	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("paypal auth: %w", err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paypal returned status %d for %s %s", resp.StatusCode, method, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access token")
	}

	c.accessToken = body.AccessToken
	// Renew a minute early so in-flight requests don't race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)

	return c.accessToken, nil
}
