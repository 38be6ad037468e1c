package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/karobarhq/karobar/app/models"
	"github.com/karobarhq/karobar/internal/pkg/env"
)

const defaultKhaltiAPIBaseURL = "https://khalti.com/api/v2"

// KhaltiClient verifies Khalti payments. Khalti accounts in paisa, so NPR
// amounts are multiplied by 100 on the wire, and the reported amount is
// compared against the expectation to catch tampering.
type KhaltiClient struct {
	SecretKey  string
	PublicKey  string
	APIBaseURL string
	ReturnURL  string

	HTTPClient *http.Client
}

// NewKhaltiClientFromEnv builds a Khalti client from environment settings.
func NewKhaltiClientFromEnv() *KhaltiClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	returnURL := strings.TrimSpace(env.GetEnv("KHALTI_RETURN_URL", ""))
	if returnURL == "" && base != "" {
		returnURL = base + "/billing/khalti/callback"
	}

	return &KhaltiClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("KHALTI_SECRET_KEY", "")),
		PublicKey:  strings.TrimSpace(env.GetEnv("KHALTI_PUBLIC_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("KHALTI_API_BASE_URL", defaultKhaltiAPIBaseURL), "/"),
		ReturnURL:  returnURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *KhaltiClient) Provider() string {
	return models.PaymentProviderKhalti
}

// InitiatePayload builds the widget parameters the client needs to open the
// Khalti checkout for this transaction.
func (c *KhaltiClient) InitiatePayload(transactionID, plan string, amount int) (string, map[string]string) {
	payload := map[string]string{
		"public_key":   c.PublicKey,
		"product_name": "Upgrade to " + plan + " plan",
		"amount":       strconv.Itoa(amount * 100), // paisa
		"purchase_id":  transactionID,
		"return_url":   c.ReturnURL,
	}
	return c.APIBaseURL + "/epayment/initiate/", payload
}

// Verify completes a Khalti payment. referenceID is the token Khalti handed
// to the client widget on checkout.
func (c *KhaltiClient) Verify(ctx context.Context, transactionID string, amount int, referenceID string) VerifyResult {
	expected := amount * 100
	reqBody, err := json.Marshal(map[string]interface{}{
		"token":  referenceID,
		"amount": expected,
	})
	if err != nil {
		return VerifyResult{OK: false, Message: fmt.Sprintf("request error: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIBaseURL+"/epayment/complete/", bytes.NewReader(reqBody))
	if err != nil {
		return VerifyResult{OK: false, Message: fmt.Sprintf("request error: %v", err)}
	}
	req.Header.Set("Authorization", "Key "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return VerifyResult{OK: false, Message: fmt.Sprintf("request error: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return VerifyResult{OK: false, Message: fmt.Sprintf("bad response: status=%d", resp.StatusCode)}
	}

	var out struct {
		State struct {
			Name string `json:"name"`
		} `json:"state"`
		Status string `json:"status"`
		Amount int    `json:"amount"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return VerifyResult{OK: false, Message: fmt.Sprintf("bad response: invalid json: %v", err)}
	}

	state := out.State.Name
	if state == "" {
		state = out.Status
	}
	if !strings.EqualFold(state, "Completed") {
		return VerifyResult{OK: false, Message: "not verified: state=" + state}
	}

	if out.Amount != 0 && out.Amount != expected {
		npr := out.Amount / 100
		return VerifyResult{
			OK:           false,
			Message:      fmt.Sprintf("amount mismatch: expected %d got %d", amount, npr),
			RemoteAmount: &npr,
		}
	}

	return VerifyResult{OK: true, Message: "verified"}
}
