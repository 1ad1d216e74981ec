package delivery

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*HTTPGateway, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	gw := NewHTTPGateway(config.GatewayConfig{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		SenderID:      "1234567890",
		Timeout:       2 * time.Second,
		DefaultRegion: "IN",
	}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return gw, &calls
}

func testMessage(recipient string) *Message {
	return &Message{
		Recipient: recipient,
		Template: Template{
			Name:     "market_update",
			Language: "en",
			Components: []Component{
				{Type: "body", Parameters: []Parameter{{Type: "text", Text: "Markets closed higher today."}}},
			},
		},
		Metadata: Metadata{AdvisorID: "adv-1", ContentID: "content-1"},
	}
}

func TestHTTPGateway_SendTemplate(t *testing.T) {
	gw, calls := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/1234567890/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "918123456789", req.To)
		assert.Equal(t, "template", req.Type)
		assert.Equal(t, "market_update", req.Template.Name)
		assert.Equal(t, "en", req.Template.Language.Code)
		require.Len(t, req.Template.Components, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.abc"}]}`))
	})

	id, err := gw.SendTemplate(context.Background(), testMessage("81234 56789"))
	require.NoError(t, err)
	assert.Equal(t, "wamid.abc", id)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPGateway_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		retryAfter string
		wantKind   ErrorKind
		wantDelay  time.Duration
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"too many","code":130429}}`, "7", KindGatewayRateLimited, 7 * time.Second},
		{"undeliverable recipient", http.StatusBadRequest, `{"error":{"message":"undeliverable","code":131026}}`, "", KindInvalidRecipient, 0},
		{"template not approved", http.StatusBadRequest, `{"error":{"message":"template not approved","code":132001}}`, "", KindGatewayRejected, 0},
		{"unauthorized", http.StatusUnauthorized, `{}`, "", KindGatewayRejected, 0},
		{"server error", http.StatusBadGateway, `upstream down`, "", KindNetworkError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := gw.SendTemplate(context.Background(), testMessage("+918123456789"))
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
			assert.Equal(t, tt.wantDelay, RetryAfterOf(err))

			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.status, de.StatusCode)
		})
	}
}

func TestHTTPGateway_TransportErrorIsNetwork(t *testing.T) {
	gw := NewHTTPGateway(config.GatewayConfig{BaseURL: "http://127.0.0.1:1", SenderID: "x"}, &http.Client{Timeout: time.Second}, nil)

	_, err := gw.SendTemplate(context.Background(), testMessage("+918123456789"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestHTTPGateway_InvalidRecipientSkipsRequest(t *testing.T) {
	gw, calls := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := gw.SendTemplate(context.Background(), testMessage("12345"))
	assert.ErrorIs(t, err, ErrInvalidRecipient)
	assert.Zero(t, calls.Load())
}

func TestHTTPGateway_GetMessageStatus(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wamid.abc", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"delivered"}`))
	})

	status, err := gw.GetMessageStatus(context.Background(), "wamid.abc")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, status)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 30*time.Second, parseRetryAfter("30", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter("", now))
	assert.Zero(t, parseRetryAfter("soon", now))
	assert.Zero(t, parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
}

func TestPhoneValidator_Normalize(t *testing.T) {
	v := NewPhoneValidator("in")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+91 81234 56789", "+918123456789", false},
		{"8123456789", "+918123456789", false},
		{"+1 201-555-0123", "+12015550123", false},
		{"", "", true},
		{"12345", "", true},
		{"not a number", "", true},
	}

	for _, tt := range tests {
		got, err := v.Normalize(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidRecipient, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestStaticTemplateProvider(t *testing.T) {
	p := NewStaticTemplateProvider([]config.TemplateConfig{
		{UseCase: "market_update", Name: "mu_v1", Language: "en", HealthScore: 60},
		{UseCase: "market_update", Name: "mu_v2", Language: "en", HealthScore: 90},
		{UseCase: "market_update", Name: "mu_hi", Language: "hi", HealthScore: 80},
		{UseCase: "festival", Name: "fest_hi", Language: "hi", HealthScore: 70},
	})
	ctx := context.Background()

	got, err := p.GetBestTemplate(ctx, "market_update", "en")
	require.NoError(t, err)
	assert.Equal(t, "mu_v2", got.Name)

	got, err = p.GetBestTemplate(ctx, "market_update", "hi")
	require.NoError(t, err)
	assert.Equal(t, "mu_hi", got.Name)

	// falls back to English
	got, err = p.GetBestTemplate(ctx, "market_update", "ta")
	require.NoError(t, err)
	assert.Equal(t, "mu_v2", got.Name)

	// then to any language
	got, err = p.GetBestTemplate(ctx, "festival", "ta")
	require.NoError(t, err)
	assert.Equal(t, "fest_hi", got.Name)

	_, err = p.GetBestTemplate(ctx, "unknown", "en")
	assert.ErrorIs(t, err, ErrNoTemplate)
}
