package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"context"

	"github.com/vigilo/platform/internal/domain"
)

const abuseIPDBEndpoint = "https://api.abuseipdb.com/api/v2/check"

// AbuseIPDBClient queries AbuseIPDB for IP reputation. Without an API key
// every check returns a zero-score report so the engine keeps working in
// environments where the integration is not configured.
type AbuseIPDBClient struct {
	apiKey string
	logger *slog.Logger
	client *http.Client
}

// NewAbuseIPDBClient creates an AbuseIPDB client with a bounded call timeout.
func NewAbuseIPDBClient(apiKey string, logger *slog.Logger) *AbuseIPDBClient {
	return &AbuseIPDBClient{
		apiKey: apiKey,
		logger: logger,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Check returns the reputation report for ip.
func (c *AbuseIPDBClient) Check(ctx context.Context, ip string) (domain.ReputationReport, error) {
	if c.apiKey == "" {
		c.logger.Debug("abuseipdb api key not set, returning zero reputation", "ip", ip)
		return domain.ReputationReport{IPAddress: ip, Source: "unconfigured"}, nil
	}

	params := url.Values{}
	params.Set("ipAddress", ip)
	params.Set("maxAgeInDays", "90")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, abuseIPDBEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return domain.ReputationReport{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ReputationReport{}, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ReputationReport{}, fmt.Errorf("api returned %d", resp.StatusCode)
	}

	var response struct {
		Data struct {
			IPAddress            string `json:"ipAddress"`
			AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
			IsWhitelisted        bool   `json:"isWhitelisted"`
			CountryCode          string `json:"countryCode"`
			UsageType            string `json:"usageType"`
			ISP                  string `json:"isp"`
			TotalReports         int    `json:"totalReports"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return domain.ReputationReport{}, fmt.Errorf("decode response: %w", err)
	}

	return domain.ReputationReport{
		IPAddress:     response.Data.IPAddress,
		AbuseScore:    response.Data.AbuseConfidenceScore,
		IsWhitelisted: response.Data.IsWhitelisted,
		CountryCode:   response.Data.CountryCode,
		UsageType:     response.Data.UsageType,
		ISP:           response.Data.ISP,
		TotalReports:  response.Data.TotalReports,
		Source:        "abuseipdb",
	}, nil
}
