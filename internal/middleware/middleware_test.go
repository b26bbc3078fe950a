package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/timeslot-reservation/internal/config"
	"github.com/iliyamo/timeslot-reservation/internal/utils"
)

func serve(e *echo.Echo, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("user_id").(string))
	}, JWTAuth("k"), RequireRole(utils.RoleAdmin))

	rec := serve(e, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other, err := utils.NewAccessToken("k", "someone", "CUSTOMER", 5)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer " + other.Token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	tok, err := utils.NewAccessToken("k", utils.AdminSubject, utils.RoleAdmin, 5)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/admin", map[string]string{"Authorization": "Bearer " + tok.Token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, utils.AdminSubject, rec.Body.String())
}

func TestResponseCache_LocalHitAndPurge(t *testing.T) {
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "slots",
	}
	store := NewResponseStore(config.CacheConfig{Enabled: true, LocalFallback: true, TTL: time.Minute}, nil)
	require.NotNil(t, store)

	calls := 0
	e := echo.New()
	e.GET("/v1/slots", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"n": calls})
	}, NewResponseCache(cfg, store))

	first := serve(e, http.MethodGet, "/v1/slots", nil)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(e, http.MethodGet, "/v1/slots", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	// a different query string is a different entry
	serve(e, http.MethodGet, "/v1/slots?x=1", nil)
	assert.Equal(t, 2, calls)

	require.NoError(t, store.Purge(context.Background(), "slots"))
	third := serve(e, http.MethodGet, "/v1/slots", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestResponseCache_SkipsErrorsAndDisabled(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{http.MethodGet: true}, Prefix: "slots"}
	store := NewLocalStore(time.Minute)

	calls := 0
	e := echo.New()
	e.GET("/fail", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "boom"})
	}, NewResponseCache(cfg, store))
	serve(e, http.MethodGet, "/fail", nil)
	serve(e, http.MethodGet, "/fail", nil)
	assert.Equal(t, 2, calls)

	assert.Nil(t, NewResponseStore(config.CacheConfig{Enabled: false, LocalFallback: true}, nil))
	assert.Nil(t, NewResponseStore(config.CacheConfig{Enabled: true}, nil))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestTokenBucket_LocalFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
	e := echo.New()
	e.POST("/v1/reservations", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, NewTokenBucket(cfg, nil))

	from := map[string]string{echo.HeaderXRealIP: "10.0.0.1"}
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/v1/reservations", from).Code)
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/v1/reservations", from).Code)

	rec := serve(e, http.MethodPost, "/v1/reservations", from)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	other := map[string]string{echo.HeaderXRealIP: "10.0.0.2"}
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/v1/reservations", other).Code)
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "1.2.3.4")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")

	assert.Equal(t, "rl:ip:1.2.3.4", rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
	assert.Equal(t, "rl:ip:1.2.3.4:route:POST /v1/reservations",
		rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c))
	assert.Equal(t, "rl:user:anon", rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}
