package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen-occupancy-backend/internal/store"
)

func setupSubscriptionRouter(t *testing.T, s store.Store, opts *webpush.Options) *gin.Engine {
	r := gin.New()
	handler := NewHandler(testConfig(), &stubFetcher{}, s, opts)
	r.GET("/api/subscriptions", handler.GetSubscription)
	r.PUT("/api/subscriptions", handler.PutSubscription)
	r.DELETE("/api/subscriptions", handler.DeleteSubscription)
	r.GET("/api/vapid_public_key", handler.GetVAPIDPublicKey)
	return r
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestPutSubscription(t *testing.T) {
	router := setupSubscriptionRouter(t, nil, nil)

	w := send(router, http.MethodPut, "/api/subscriptions", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
}

func TestPutSubscription_Validation(t *testing.T) {
	router := setupSubscriptionRouter(t, newTestStore(t), &webpush.Options{VAPIDPublicKey: "pub"})

	testCases := []struct {
		name string
		body string
	}{
		{name: "Missing threshold", body: `{"endpoint":"https://push.example/a","p256dh":"k","auth":"a"}`},
		{name: "Negative threshold", body: `{"endpoint":"https://push.example/a","p256dh":"k","auth":"a","threshold":-1}`},
		{name: "Missing keys", body: `{"endpoint":"https://push.example/a","threshold":5}`},
		{name: "Not JSON", body: `threshold=5`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := send(router, http.MethodPut, "/api/subscriptions", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())
		})
	}
}

func TestSubscriptions_Disabled(t *testing.T) {
	router := setupSubscriptionRouter(t, newTestStore(t), nil)

	w := send(router, http.MethodPut, "/api/subscriptions", `{"endpoint":"e","p256dh":"k","auth":"a","threshold":0}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = send(router, http.MethodGet, "/api/subscriptions?endpoint=e", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = send(router, http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubscriptions_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	router := setupSubscriptionRouter(t, s, &webpush.Options{VAPIDPublicKey: "pub"})
	endpoint := "https://push.example/send/abc%2Bdef"

	w := send(router, http.MethodGet, "/api/vapid_public_key", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"pub"}`, w.Body.String())

	w = send(router, http.MethodPut, "/api/subscriptions",
		`{"endpoint":"`+endpoint+`","p256dh":"k","auth":"a","threshold":10}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = send(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"endpoint":"`+endpoint+`","threshold":10}`, w.Body.String(), "endpoint is matched undecoded")

	stored, err := s.GetSubscription(context.Background(), endpoint)
	require.NoError(t, err)
	assert.Equal(t, "k", stored.P256DH)

	w = send(router, http.MethodDelete, "/api/subscriptions", `{"endpoint":"`+endpoint+`"}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = send(router, http.MethodGet, "/api/subscriptions?endpoint="+url.QueryEscape("https://push.example/other"), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(router, http.MethodGet, "/api/subscriptions?endpoint="+endpoint, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSubscription_MissingEndpoint(t *testing.T) {
	router := setupSubscriptionRouter(t, newTestStore(t), &webpush.Options{})

	w := send(router, http.MethodGet, "/api/subscriptions", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRawQueryParam(t *testing.T) {
	v, ok := rawQueryParam("a=1&endpoint=https%3A%2F%2Fx&b=2", "endpoint")
	assert.True(t, ok)
	assert.Equal(t, "https%3A%2F%2Fx", v)

	_, ok = rawQueryParam("a=1", "endpoint")
	assert.False(t, ok)
}
