package justwatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/streamatlas/streamatlas-backend/pkg/config"
	"github.com/streamatlas/streamatlas-backend/pkg/logger"
)

func testConfig() config.JustWatchConfig {
	return config.JustWatchConfig{
		BaseURL:           "http://catalog.test",
		Region:            "IN",
		Language:          "en",
		RequestsPerSecond: 1000,
		PageSize:          30,
		Timeout:           time.Second,
	}
}

func testRetryConfig() config.RetryConfig {
	return config.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient(testConfig(), testRetryConfig(), testLogger(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestFetchTitlesPage(t *testing.T) {
	respBody := `{"data":{"popularTitles":{
		"edges":[{"node":{
			"id":"tm1","objectId":101,"objectType":"MOVIE",
			"content":{
				"title":"Alpha","originalReleaseYear":2021,
				"shortDescription":"A movie.",
				"posterUrl":"/poster/55/alpha.jpg",
				"externalIds":{"imdbId":"tt0001","tmdbId":"42"},
				"genres":[{"shortName":"act","translation":"Action"}]
			},
			"offers":[{
				"monetizationType":"FLATRATE","presentationType":"HD",
				"package":{"id":"pkg1","packageId":8,"clearName":"Acme+"},
				"standardWebURL":"https://acme.test/alpha"
			}]
		}}],
		"pageInfo":{"endCursor":"c2","hasNextPage":true},
		"totalCount":12
	}}}`

	var capturedURL string
	var capturedBody map[string]any
	var capturedHeaders http.Header

	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(bodyBytes, &capturedBody); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return jsonResponse(http.StatusOK, respBody), nil
	})

	page, err := client.FetchTitlesPage(context.Background(), "")
	if err != nil {
		t.Fatalf("fetch titles page: %v", err)
	}
	if capturedURL != "http://catalog.test/graphql" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("User-Agent") == "" || capturedHeaders.Get("Origin") != origin {
		t.Fatalf("browser headers missing: %v", capturedHeaders)
	}
	variables, _ := capturedBody["variables"].(map[string]any)
	if variables["country"] != "IN" || variables["first"] != float64(30) {
		t.Fatalf("unexpected variables %v", variables)
	}
	if _, present := variables["after"]; present {
		t.Fatalf("first page must not send a cursor, got %v", variables["after"])
	}

	if !page.HasMore || page.NextCursor != "c2" || page.TotalCount != 12 {
		t.Fatalf("unexpected page meta %+v", page)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(page.Items))
	}
	item := page.Items[0]
	if item.ID != "101" {
		t.Fatalf("object id must win over graphql id, got %q", item.ID)
	}
	if item.Title != "Alpha" || item.ReleaseYear != 2021 || item.TMDBID != "42" || item.IMDbID != "tt0001" {
		t.Fatalf("unexpected item %+v", item)
	}
	if len(item.Offers) != 1 || item.Offers[0].Package.ClearName != "Acme+" {
		t.Fatalf("unexpected offers %+v", item.Offers)
	}
}

func TestFetchTitlesPagePassesCursor(t *testing.T) {
	var capturedBody map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		bodyBytes, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(bodyBytes, &capturedBody)
		return jsonResponse(http.StatusOK, `{"data":{"popularTitles":{"edges":[],"pageInfo":{"endCursor":"","hasNextPage":false},"totalCount":0}}}`), nil
	})

	page, err := client.FetchTitlesPage(context.Background(), "c2")
	if err != nil {
		t.Fatalf("fetch titles page: %v", err)
	}
	variables, _ := capturedBody["variables"].(map[string]any)
	if variables["after"] != "c2" {
		t.Fatalf("expected cursor c2, got %v", variables["after"])
	}
	if page.HasMore {
		t.Fatal("expected terminal page")
	}
}

func TestFetchTitlesForProviderFiltersOffers(t *testing.T) {
	respBody := `{"data":{"popularTitles":{
		"edges":[
			{"node":{"objectId":101,"content":{"title":"Alpha"},"offers":[
				{"monetizationType":"FLATRATE","package":{"packageId":8,"clearName":"Acme+"}}
			]}},
			{"node":{"objectId":102,"content":{"title":"Beta"},"offers":[
				{"monetizationType":"FLATRATE","package":{"packageId":9,"clearName":"Beta TV"}}
			]}},
			{"node":{"objectId":103,"content":{"title":"Gamma"},"offers":[]}}
		],
		"pageInfo":{"endCursor":"c2","hasNextPage":true},
		"totalCount":3
	}}}`
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, respBody), nil
	})

	page, err := client.FetchTitlesForProvider(context.Background(), "8", "")
	if err != nil {
		t.Fatalf("fetch titles for provider: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "101" {
		t.Fatalf("expected only the provider's title kept, got %+v", page.Items)
	}
	// The cursor and HasMore must describe the unfiltered feed page so
	// callers keep paging.
	if !page.HasMore || page.NextCursor != "c2" {
		t.Fatalf("unexpected page meta %+v", page)
	}
}

func TestFetchTitlesPageRetriesServerErrors(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return jsonResponse(http.StatusBadGateway, `upstream sad`), nil
		}
		return jsonResponse(http.StatusOK, `{"data":{"popularTitles":{"edges":[],"pageInfo":{"endCursor":"","hasNextPage":false},"totalCount":0}}}`), nil
	})

	if _, err := client.FetchTitlesPage(context.Background(), ""); err != nil {
		t.Fatalf("fetch titles page: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 2 retries before success, got %d calls", calls)
	}
}

func TestFetchTitlesPageGraphQLError(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"errors":[{"message":"country is invalid"}]}`), nil
	})
	if _, err := client.FetchTitlesPage(context.Background(), ""); err == nil {
		t.Fatal("expected error for graphql rejection")
	}
}

func TestFetchProvidersDegradesToEmpty(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `nope`), nil
	})
	if providers := client.FetchProviders(context.Background()); len(providers) != 0 {
		t.Fatalf("expected empty provider list on failure, got %d", len(providers))
	}
}

func TestFetchProviders(t *testing.T) {
	respBody := `{"data":{"packages":[
		{"id":"pkg8","packageId":8,"clearName":"Acme+","technicalName":"acmeplus","shortName":"acm","icon":"/icon/8"},
		{"id":"pkg9","packageId":9,"clearName":"Beta TV","technicalName":"betatv","shortName":"bet","icon":"/icon/9"}
	]}}`
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, respBody), nil
	})

	providers := client.FetchProviders(context.Background())
	if len(providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(providers))
	}
	if providers[0].PackageID != 8 || providers[0].ClearName != "Acme+" {
		t.Fatalf("unexpected provider %+v", providers[0])
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
