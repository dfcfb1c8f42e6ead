package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// EntitlementGranter is the boundary to the platform entitlement service —
// premium-day promo rewards leave this subsystem through it.
type EntitlementGranter interface {
	GrantPremiumDays(accountID string, days int) error
}

type EntitlementServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewEntitlementServiceClient(baseURL, token string) *EntitlementServiceClient {
	return &EntitlementServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GrantPremiumDays calls the entitlement service. Callers invoke it inside the
// redemption transaction so a failed grant rolls the redemption back.
func (c *EntitlementServiceClient) GrantPremiumDays(accountID string, days int) error {
	url := fmt.Sprintf("%s/api/v1/internal/entitlements/premium", c.BaseURL)

	reqBody := map[string]interface{}{
		"account_id": accountID,
		"days":       days,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("EntitlementService premium grant returned %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("entitlement grant failed: %d", resp.StatusCode)
	}

	return nil
}
