package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://www.binance.com/bapi/futures/v1"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// decodeEnvelope unwraps the {success, data, message} envelope. A
// success=false envelope yields an error so callers degrade the field
// the same way they would on a transport failure.
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env struct {
		Success bool            `json:"success"`
		Code    string          `json:"code"`
		Message *string         `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if !env.Success {
		msg := "unknown"
		if env.Message != nil {
			msg = *env.Message
		}
		return nil, fmt.Errorf("upstream rejected request (code=%s): %s", env.Code, msg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("empty data")
	}
	return env.Data, nil
}

func (c *Client) getInto(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return err
	}
	data, err := decodeEnvelope(body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) GetPortfolioDetail(ctx context.Context, leadID string) (*PortfolioDetail, error) {
	if leadID == "" {
		return nil, fmt.Errorf("portfolio id is required")
	}
	query := url.Values{}
	query.Set("portfolioId", leadID)
	var out PortfolioDetail
	if err := c.getInto(ctx, "/friendly/future/copy-trade/lead-portfolio/detail", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetRoiSeries(ctx context.Context, leadID string) ([]RoiPoint, error) {
	if leadID == "" {
		return nil, fmt.Errorf("portfolio id is required")
	}
	query := url.Values{}
	query.Set("portfolioId", leadID)
	query.Set("timeRange", "90D")
	query.Set("dataType", "ROI")
	var out []RoiPoint
	if err := c.getInto(ctx, "/friendly/future/copy-trade/lead-portfolio/chart-data", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrderHistory(ctx context.Context, leadID string, pageSize int) (*OrderHistory, error) {
	if leadID == "" {
		return nil, fmt.Errorf("portfolio id is required")
	}
	if pageSize <= 0 {
		pageSize = 200
	}
	query := url.Values{}
	query.Set("portfolioId", leadID)
	query.Set("pageNumber", "1")
	query.Set("pageSize", fmt.Sprintf("%d", pageSize))
	var wire struct {
		Total int64       `json:"total"`
		List  []LeadOrder `json:"list"`
	}
	if err := c.getInto(ctx, "/friendly/future/copy-trade/lead-portfolio/order-history", query, &wire); err != nil {
		return nil, err
	}
	return &OrderHistory{Total: wire.Total, AllOrders: wire.List}, nil
}

func (c *Client) GetPositions(ctx context.Context, leadID string) ([]LeadPosition, error) {
	if leadID == "" {
		return nil, fmt.Errorf("portfolio id is required")
	}
	query := url.Values{}
	query.Set("portfolioId", leadID)
	var out []LeadPosition
	if err := c.getInto(ctx, "/friendly/future/copy-trade/lead-portfolio/positions", query, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []LeadPosition{}
	}
	return out, nil
}

func (c *Client) GetAssetPreference(ctx context.Context, leadID string) (*AssetPreference, error) {
	if leadID == "" {
		return nil, fmt.Errorf("portfolio id is required")
	}
	query := url.Values{}
	query.Set("portfolioId", leadID)
	var out AssetPreference
	if err := c.getInto(ctx, "/friendly/future/copy-trade/lead-portfolio/position-preference", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
