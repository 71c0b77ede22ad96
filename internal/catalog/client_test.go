package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"supplymatch/internal"
	"supplymatch/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func testConfig() config.Config {
	return config.Config{
		CatalogAPIToken:     "test",
		CatalogAPIBaseURL:   "https://example.test/api/v1",
		CatalogRateLimitRPS: 1000,
		CatalogTimeoutMs:    1000,
	}
}

func TestScrollAllWithRetry(t *testing.T) {
	attempt := 0

	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/api/v1/item/scroll" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer test" {
				t.Fatalf("auth header %q", got)
			}
			attempt++
			switch attempt {
			case 1:
				return jsonResponse(http.StatusInternalServerError, map[string]any{"error": "boom"}), nil
			case 2:
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
					"items": []map[string]any{{
						"itemId": 1001, "manufacturerSku": "305196", "name": "Needle 18G x 1in",
						"manufacturer": "BD", "specifications": map[string]any{"Gauge": "18 G", "Application": "Needle"},
					}},
					"scrollId": "abc",
				}}), nil
			default:
				if got := r.URL.Query().Get("scrollId"); got != "abc" {
					t.Fatalf("scrollId=%q", got)
				}
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": map[string]any{
					"items": []map[string]any{{
						"itemId": "1002", "name": "Exam glove",
						"specifications": []map[string]any{{"name": "Size", "value": "Large"}},
					}},
					"scrollId": nil,
				}}), nil
			}
		}),
	}

	entries, err := client.ScrollAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len=%d", len(entries))
	}
	if entries[0].ItemID != 1001 || entries[0].ManufacturerSKU != "305196" || entries[0].Specifications["Gauge"] != "18 G" {
		t.Fatalf("first entry %+v", entries[0])
	}
	if entries[1].ItemID != 1002 || entries[1].Specifications["Size"] != "Large" {
		t.Fatalf("second entry %+v", entries[1])
	}
}

func TestFetchFailsOnClientError(t *testing.T) {
	calls := 0
	client := NewClient(testConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(http.StatusUnauthorized, map[string]any{"error": "denied"}), nil
		}),
	}
	if _, err := client.ScrollAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("4xx must not be retried, calls=%d", calls)
	}
}

func TestIncrementalRejectsUnknownMode(t *testing.T) {
	client := NewClient(testConfig())
	if _, err := client.Incremental(context.Background(), "week"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMissingToken(t *testing.T) {
	cfg := testConfig()
	cfg.CatalogAPIToken = ""
	if _, err := NewClient(cfg).ScrollAll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestIndexLookup(t *testing.T) {
	idx := BuildIndex([]internal.Product{
		{ID: 1, ManufacturerItemCode: "ndl-18g", PackageType: "BX"},
		{ID: 2, ManufacturerItemCode: "NDL-18G", PackageType: "CS"},
		{ID: 3, ManufacturerItemCode: ""},
	})
	got := idx.Lookup(" ndl-18g ")
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("got %+v", got)
	}
	if idx.Lookup("") != nil {
		t.Fatal("empty code must not match")
	}
	if _, ok := idx.ProductsByID[3]; !ok {
		t.Fatal("product without code must still be indexed by id")
	}
}
