package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/insights-engine/internal/config"
	"github.com/insights-engine/internal/types"
)

func testClient(platformHost, bridgeHost string) *GraphClient {
	return NewGraphClient(&config.GraphConfig{
		PlatformHost:      platformHost,
		BridgeHost:        bridgeHost,
		RequestTimeout:    5 * time.Second,
		MaxRetries:        3,
		RetryBaseDelay:    time.Millisecond,
		MaxPages:          20,
		RequestsPerSecond: 10000, // effectively unthrottled in tests
	})
}

func TestGetParsesEmbeddedErrorObject(t *testing.T) {
	// Upstream reports errors inside 200 bodies; they must surface as
	// typed APIErrors
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"error":{"message":"Invalid OAuth access token","code":190}}`)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	_, err := client.Get(context.Background(), server.URL+"/me?access_token=x")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 190 {
		t.Errorf("Code = %d, want 190", apiErr.Code)
	}
	if apiErr.Transient() {
		t.Error("auth error must not be classified transient")
	}
}

func TestGetNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	_, err := client.Get(context.Background(), server.URL+"/whatever")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
}

func TestGetWithRetryRecoversFromTransientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			fmt.Fprint(w, `{"error":{"message":"Service temporarily unavailable","code":2}}`)
			return
		}
		fmt.Fprint(w, `{"id":"123"}`)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	body, err := client.GetWithRetry(context.Background(), server.URL+"/123")
	if err != nil {
		t.Fatalf("GetWithRetry() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if string(body) != `{"id":"123"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestGetWithRetryStopsOnPermanentError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"error":{"message":"Unsupported get request","code":100}}`)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	_, err := client.GetWithRetry(context.Background(), server.URL+"/bad")
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", calls)
	}
}

func TestGetWithFallbackUsesLaterAttempts(t *testing.T) {
	var primaryCalls, fallbackCalls int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&primaryCalls, 1)
		fmt.Fprint(w, `{"error":{"message":"metric not supported","code":100}}`)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fallbackCalls, 1)
		fmt.Fprint(w, `{"data":[{"name":"reach"}]}`)
	}))
	defer fallback.Close()

	client := testClient(primary.URL, fallback.URL)
	attempts := []Attempt{
		{Host: primary.URL, Path: "1/insights", Params: url.Values{"metric": {"everything"}}, Label: "full"},
		{Host: fallback.URL, Path: "1/insights", Params: url.Values{"metric": {"reach"}}, Label: "safe"},
	}

	body, err := client.GetWithFallback(context.Background(), "tok", attempts, "daily_insights")
	if err != nil {
		t.Fatalf("GetWithFallback() error = %v", err)
	}
	if atomic.LoadInt32(&primaryCalls) != 1 || atomic.LoadInt32(&fallbackCalls) != 1 {
		t.Errorf("calls: primary=%d fallback=%d, want 1/1", primaryCalls, fallbackCalls)
	}
	if string(body) != `{"data":[{"name":"reach"}]}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestGetWithFallbackTagsLastError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"nope","code":100}}`)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	attempts := []Attempt{
		{Host: server.URL, Path: "1/insights", Label: "full"},
		{Host: server.URL, Path: "1/insights", Label: "safe"},
	}

	_, err := client.GetWithFallback(context.Background(), "tok", attempts, "demographics")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Label != "demographics" {
		t.Errorf("Label = %q, want demographics", apiErr.Label)
	}
}

func TestPaginateStopsAtPageCap(t *testing.T) {
	// The server returns a next cursor forever; pagination must stop at
	// the cap with the accumulated partial results
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"data":   []map[string]string{{"id": "post"}},
			"paging": map[string]string{"next": server.URL + "/media?page=next"},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	items, err := client.Paginate(context.Background(), server.URL+"/media", 5)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(items) != 5 {
		t.Errorf("items = %d, want 5 (one per page up to the cap)", len(items))
	}
}

func TestPaginateStopsWhenNoCursor(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"data":[{"id":"a"},{"id":"b"}],"paging":{}}`)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	items, err := client.Paginate(context.Background(), server.URL+"/media", 20)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("items = %d, want 2", len(items))
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPaginateKeepsPartialResultsOnMidWalkError(t *testing.T) {
	var server *httptest.Server
	var calls int32
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			resp := map[string]interface{}{
				"data":   []map[string]string{{"id": "first"}},
				"paging": map[string]string{"next": server.URL + "/media?page=2"},
			}
			json.NewEncoder(w).Encode(resp)
			return
		}
		fmt.Fprint(w, `{"error":{"message":"Unsupported get request","code":100}}`)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	items, err := client.Paginate(context.Background(), server.URL+"/media", 20)
	if err != nil {
		t.Fatalf("Paginate() error = %v, partial results must not error", err)
	}
	if len(items) != 1 {
		t.Errorf("items = %d, want 1 partial result", len(items))
	}
}

func TestFetchDailyInsightsParsesPoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"name":"reach","period":"day","values":[
				{"value":100,"end_time":"2026-01-05T08:00:00+0000"},
				{"value":150,"end_time":"2026-01-06T08:00:00+0000"}
			]},
			{"name":"phone_call_clicks","period":"day","values":[
				{"value":3,"end_time":"2026-01-05T08:00:00+0000"}
			]},
			{"name":"some_future_metric","period":"day","values":[
				{"value":1,"end_time":"2026-01-05T08:00:00+0000"}
			]}
		]}`)
	}))
	defer server.Close()

	client := testClient(server.URL, server.URL)
	window := types.NewDateWindow(
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
	)
	points, err := client.FetchDailyInsights(context.Background(), "tok", types.FamilyPlatform, "17841400000000000", window)
	if err != nil {
		t.Fatalf("FetchDailyInsights() error = %v", err)
	}

	// Unknown upstream metrics are skipped; phone_call_clicks maps to
	// contact_clicks
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}
	if points[0].Metric != types.MetricReach || points[0].Value != 100 {
		t.Errorf("unexpected first point: %+v", points[0])
	}
	if !points[0].Date.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first point date = %v, want 2026-01-05", points[0].Date)
	}
	if points[2].Metric != types.MetricContactClicks {
		t.Errorf("points[2].Metric = %s, want contact_clicks", points[2].Metric)
	}
}

func TestPrimaryHostSelection(t *testing.T) {
	client := testClient("https://platform.example", "https://bridge.example")

	if got := client.PrimaryHost(types.FamilyPlatform); got != "https://platform.example" {
		t.Errorf("PrimaryHost(platform) = %s", got)
	}
	if got := client.PrimaryHost(types.FamilyBridge); got != "https://bridge.example" {
		t.Errorf("PrimaryHost(bridge) = %s", got)
	}
	if got := client.FallbackHost(types.FamilyBridge); got != "https://platform.example" {
		t.Errorf("FallbackHost(bridge) = %s", got)
	}
}

func TestInsightsCapable(t *testing.T) {
	if InsightsCapable(types.MediaCarousel) {
		t.Error("carousel albums must be reported insights-incapable")
	}
	if !InsightsCapable(types.MediaImage) || !InsightsCapable(types.MediaVideo) {
		t.Error("images and videos must be insights-capable")
	}
}
