package billing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/env"
)

const (
	defaultEsewaCheckoutURL = "https://rc-epay.esewa.com.np/epay/main"
	defaultEsewaVerifyURL   = "https://uat.esewa.com.np/api/epay/verify/"
)

// ESewaClient verifies eSewa payments. The verify endpoint answers with a
// plain-text body containing "Success" when the transaction settled with the
// stated amount.
type ESewaClient struct {
	MerchantCode string
	CheckoutURL  string
	VerifyURL    string
	SuccessURL   string
	FailureURL   string

	HTTPClient *http.Client
}

// NewESewaClientFromEnv builds an eSewa client from environment settings.
func NewESewaClientFromEnv() *ESewaClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	successURL := strings.TrimSpace(env.GetEnv("ESEWA_SUCCESS_URL", ""))
	failureURL := strings.TrimSpace(env.GetEnv("ESEWA_FAILURE_URL", ""))
	if successURL == "" && base != "" {
		successURL = base + "/billing/esewa/success"
	}
	if failureURL == "" && base != "" {
		failureURL = base + "/billing/esewa/failure"
	}

	return &ESewaClient{
		MerchantCode: strings.TrimSpace(env.GetEnv("ESEWA_MERCHANT_CODE", "EPAYTEST")),
		CheckoutURL:  strings.TrimSpace(env.GetEnv("ESEWA_CHECKOUT_URL", defaultEsewaCheckoutURL)),
		VerifyURL:    strings.TrimSpace(env.GetEnv("ESEWA_VERIFY_URL", defaultEsewaVerifyURL)),
		SuccessURL:   successURL,
		FailureURL:   failureURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *ESewaClient) Provider() string {
	return models.PaymentProviderEsewa
}

// InitiatePayload builds the checkout redirect for an upgrade. Amounts are
// whole NPR; service charges and delivery charges are always zero here.
func (c *ESewaClient) InitiatePayload(transactionID, plan string, amount int) (string, map[string]string) {
	amt := strconv.Itoa(amount)
	payload := map[string]string{
		"amt":   amt,
		"pdc":   "0",
		"psc":   "0",
		"txAmt": "0",
		"tAmt":  amt,
		"pid":   transactionID,
		"scd":   c.MerchantCode,
		"su":    c.SuccessURL,
		"fu":    c.FailureURL,
	}

	q := url.Values{}
	for k, v := range payload {
		q.Set(k, v)
	}
	return c.CheckoutURL + "?" + q.Encode(), payload
}

// Verify asks eSewa whether the transaction settled. Communication failures
// and non-2xx answers are reported with transient prefixes so the
// orchestrator leaves the transaction PENDING.
func (c *ESewaClient) Verify(ctx context.Context, transactionID string, amount int, referenceID string) VerifyResult {
	u, err := url.Parse(c.VerifyURL)
	if err != nil {
		return VerifyResult{OK: false, Message: fmt.Sprintf("request error: invalid verify url: %v", err)}
	}
	q := u.Query()
	q.Set("q", "bl")
	q.Set("scd", c.MerchantCode)
	q.Set("pid", transactionID)
	q.Set("rid", referenceID)
	q.Set("amt", strconv.Itoa(amount))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return VerifyResult{OK: false, Message: fmt.Sprintf("request error: %v", err)}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return VerifyResult{OK: false, Message: fmt.Sprintf("request error: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return VerifyResult{OK: false, Message: fmt.Sprintf("bad response: status=%d", resp.StatusCode)}
	}

	if strings.Contains(string(body), "Success") {
		return VerifyResult{OK: true, Message: "verified"}
	}
	return VerifyResult{OK: false, Message: "not verified: " + strings.TrimSpace(string(body))}
}
