package strava

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ultracoach/reconcile/core"
)

type recordingPolicy struct {
	mu       sync.Mutex
	observed []observation
}

type observation struct {
	key        core.RateLimitKey
	statusCode int
	headers    map[string]string
}

func (p *recordingPolicy) Check(ctx context.Context, key core.RateLimitKey) (core.RateLimitDecision, error) {
	return core.RateLimitDecision{Allowed: true}, nil
}

func (p *recordingPolicy) Observe(ctx context.Context, key core.RateLimitKey, statusCode int, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observed = append(p.observed, observation{key: key, statusCode: statusCode, headers: headers})
	return nil
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...ClientOption) *Client {
	t.Helper()
	base := append([]ClientOption{
		WithBaseURL(server.URL),
		WithTokenURL(server.URL + "/oauth/token"),
		WithHTTPClient(server.Client()),
	}, opts...)
	client, err := NewClient("client-id", "client-secret", base...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestClientFetchActivityDecodesPayload(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities/9001" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("X-RateLimit-Limit", "200,2000")
		w.Header().Set("X-RateLimit-Remaining", "187,1956")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 9001,
			"name": "Morning Run",
			"sport_type": "Run",
			"distance": 16093.4,
			"moving_time": 3600,
			"start_date": "2026-03-14T07:30:00Z",
			"average_heartrate": 148.5,
			"total_elevation_gain": 120.0,
			"trainer": false
		}`))
	}))
	defer server.Close()

	policy := &recordingPolicy{}
	client := newTestClient(t, server, WithRateLimitPolicy(policy))

	activity, err := client.FetchActivity(context.Background(), "token-abc", 9001)
	if err != nil {
		t.Fatalf("FetchActivity: %v", err)
	}
	if gotAuth != "Bearer token-abc" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
	if activity.ID != 9001 || activity.Name != "Morning Run" {
		t.Fatalf("unexpected activity %+v", activity)
	}
	if activity.DistanceMeters != 16093.4 || activity.MovingTimeSeconds != 3600 {
		t.Fatalf("unexpected metrics %+v", activity)
	}
	if activity.AverageHeartRate == nil || *activity.AverageHeartRate != 148.5 {
		t.Fatalf("expected average heart rate 148.5, got %+v", activity.AverageHeartRate)
	}
	if activity.Raw == nil {
		t.Fatal("expected raw payload to be retained")
	}
	if len(policy.observed) != 1 {
		t.Fatalf("expected one rate observation, got %d", len(policy.observed))
	}
	obs := policy.observed[0]
	if obs.key.ProviderID != "strava" || obs.key.BucketKey != "activity_fetch" {
		t.Fatalf("unexpected observation key %+v", obs.key)
	}
	if obs.statusCode != http.StatusOK {
		t.Fatalf("expected status 200 observed, got %d", obs.statusCode)
	}
	if obs.headers["X-Ratelimit-Limit"] != "200,2000" {
		t.Fatalf("expected rate headers forwarded, got %+v", obs.headers)
	}
}

func TestClientFetchActivityNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Record Not Found"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.FetchActivity(context.Background(), "token-abc", 4242)
	if !errors.Is(err, core.ErrActivityNotFound) {
		t.Fatalf("expected ErrActivityNotFound, got %v", err)
	}
}

func TestClientFetchActivityThrottledStillObserves(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	policy := &recordingPolicy{}
	client := newTestClient(t, server, WithRateLimitPolicy(policy))

	_, err := client.FetchActivity(context.Background(), "token-abc", 9001)
	if err == nil {
		t.Fatal("expected error for throttled response")
	}
	if len(policy.observed) != 1 {
		t.Fatalf("expected throttled response to be observed, got %d observations", len(policy.observed))
	}
	if policy.observed[0].statusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 observed, got %d", policy.observed[0].statusCode)
	}
	if policy.observed[0].headers["Retry-After"] != "30" {
		t.Fatalf("expected retry hint forwarded, got %+v", policy.observed[0].headers)
	}
}

func TestClientFetchActivityUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.FetchActivity(context.Background(), "stale-token", 9001)
	if err == nil || errors.Is(err, core.ErrActivityNotFound) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestClientRefreshTokenExchangesGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostFormValue("grant_type") != "refresh_token" {
			t.Fatalf("unexpected grant type %q", r.PostFormValue("grant_type"))
		}
		if r.PostFormValue("refresh_token") != "refresh-old" {
			t.Fatalf("unexpected refresh token %q", r.PostFormValue("refresh_token"))
		}
		if r.PostFormValue("client_id") != "client-id" || r.PostFormValue("client_secret") != "client-secret" {
			t.Fatal("expected client credentials in token request")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-new","refresh_token":"refresh-new","expires_at":1773654600}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	grant, err := client.RefreshToken(context.Background(), "refresh-old")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if grant.AccessToken != "access-new" || grant.RefreshToken != "refresh-new" {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if grant.ExpiresAt.Unix() != 1773654600 {
		t.Fatalf("unexpected expiry %v", grant.ExpiresAt)
	}
}

func TestClientRefreshTokenKeepsOldRefreshWhenOmitted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"access-new","expires_at":1773654600}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	grant, err := client.RefreshToken(context.Background(), "refresh-old")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if grant.RefreshToken != "refresh-old" {
		t.Fatalf("expected original refresh token retained, got %q", grant.RefreshToken)
	}
}

func TestClientRefreshTokenRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Bad Request"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	if _, err := client.RefreshToken(context.Background(), "refresh-old"); err == nil {
		t.Fatal("expected error for rejected refresh")
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient("", "secret"); err == nil {
		t.Fatal("expected error for missing client id")
	}
	if _, err := NewClient("id", "   "); err == nil {
		t.Fatal("expected error for missing client secret")
	}
}
