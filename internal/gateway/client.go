package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client реализует Gateway поверх HTTP API шлюза.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient создаёт экземпляр клиента. Таймаут ограничивает создание заказа:
// по его истечении платёж остаётся pending, а не failed — отсутствие ответа
// не означает отсутствие списания.
func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateOrder создаёт во внешнем шлюзе заказ на указанную сумму.
func (c *Client) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string, notes map[string]string) (*Order, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("gateway: baseURL не задан")
	}

	payload := map[string]any{
		"amount":   amountMinorUnits,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	var order Order
	if err := c.post(ctx, "orders", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// VerifyCapture проверяет подпись подтверждения оплаты: HMAC-SHA256 от
// "orderID|paymentRef" на общем секрете, hex-кодировка. Сравнение
// постоянное по времени.
func (c *Client) VerifyCapture(orderID, paymentRef, signature string) bool {
	if orderID == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentRef))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// TransferToPayee выплачивает средства на реквизиты получателя.
func (c *Client) TransferToPayee(ctx context.Context, details PayoutDetails, amountMinorUnits int64) (*Transfer, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("gateway: baseURL не задан")
	}

	payload := map[string]any{
		"amount":  amountMinorUnits,
		"account": details.Account,
		"notes": map[string]string{
			"card_last4": details.CardLast4,
			"bank_name":  details.BankName,
		},
	}

	var transfer Transfer
	if err := c.post(ctx, "transfers", payload, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

// post выполняет POST запрос к шлюзу и декодирует JSON ответа.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := c.baseURL
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	url += path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.keyID != "" {
		req.SetBasicAuth(c.keyID, c.keySecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: запрос %s не выполнен: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errorBody)
		return fmt.Errorf("gateway: код ответа %d: %v", resp.StatusCode, errorBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway: не удалось разобрать ответ %s: %w", path, err)
	}

	return nil
}
