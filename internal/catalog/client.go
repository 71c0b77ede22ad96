package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"supplymatch/internal"
	"supplymatch/internal/config"
)

const maxAttempts = 5

// Client reads the external master catalog API.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Items    []map[string]any `json:"items"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.CatalogRateLimitRPS),
	}
}

func (c *Client) ScrollAll(ctx context.Context) ([]internal.CatalogEntry, error) {
	return c.scroll(ctx, map[string]string{})
}

// Incremental fetches entries changed within the configured lookback; mode is "day" or "hour".
func (c *Client) Incremental(ctx context.Context, mode string) ([]internal.CatalogEntry, error) {
	params := map[string]string{}
	switch mode {
	case "day":
		params["day"] = strconv.Itoa(c.cfg.IncrementalLookbackDay)
	case "hour":
		params["hour"] = strconv.Itoa(c.cfg.IncrementalLookbackHrs)
	default:
		return nil, fmt.Errorf("unsupported incremental mode: %s", mode)
	}
	return c.scroll(ctx, params)
}

func (c *Client) scroll(ctx context.Context, params map[string]string) ([]internal.CatalogEntry, error) {
	all := make([]internal.CatalogEntry, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "item/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Items {
			entry, err := toCatalogEntry(raw)
			if err != nil {
				continue
			}
			all = append(all, entry)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Items) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.CatalogAPIToken) == "" {
		return nil, errors.New("missing CATALOG_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.CatalogAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.CatalogAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				lastErr = fmt.Errorf("catalog status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("catalog api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("catalog api unsuccessful: %s", string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("catalog request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toCatalogEntry(raw map[string]any) (internal.CatalogEntry, error) {
	id, ok := toInt64(raw["itemId"])
	if !ok {
		return internal.CatalogEntry{}, errors.New("missing itemId")
	}
	return internal.CatalogEntry{
		ItemID:           id,
		ManufacturerSKU:  toString(raw["manufacturerSku"]),
		Name:             toString(raw["name"]),
		ShortDescription: toString(raw["shortDescription"]),
		Manufacturer:     toString(raw["manufacturer"]),
		Brand:            toString(raw["brand"]),
		Category:         toString(raw["category"]),
		Specifications:   toSpecifications(raw["specifications"]),
	}, nil
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// toSpecifications accepts {"Gauge": "18"} or [{"name": "Gauge", "value": "18"}].
func toSpecifications(v any) map[string]string {
	out := map[string]string{}
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if s := toString(val); s != "" {
				out[k] = s
			}
		}
	case []any:
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, value := toString(m["name"]), toString(m["value"])
			if name != "" && value != "" {
				out[name] = value
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
