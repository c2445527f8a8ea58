package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/config"
	"github.com/example/ricestore/internal/handlers"
	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/routes"
	"github.com/example/ricestore/internal/services"
	"github.com/example/ricestore/internal/testutil"
	"github.com/example/ricestore/internal/utils"
)

type harness struct {
	t        *testing.T
	app      *fiber.App
	db       *gorm.DB
	cfg      *config.Config
	sessions services.SessionStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		TokenExpires:     time.Hour,
		AdminSessionTTL:  time.Hour,
		Currency:         "PHP",
		ShippingFee:      decimal.NewFromInt(100),
		FreeShippingQty:  5,
		DeliveryLeadTime: 5 * time.Hour,
	}

	images, err := services.NewLocalImageStore(t.TempDir())
	require.NoError(t, err)

	sessions := services.NewDBSessionStore(db, cfg.AdminSessionTTL)
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	routes.Register(app, routes.Dependencies{
		DB:       db,
		Config:   cfg,
		Sessions: sessions,
		Images:   images,
	})

	return &harness{t: t, app: app, db: db, cfg: cfg, sessions: sessions}
}

type response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r response) JSON(t *testing.T) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(r.Body, &out), string(r.Body))
	return out
}

func (r response) Data(t *testing.T) map[string]interface{} {
	t.Helper()
	data, ok := r.JSON(t)["data"].(map[string]interface{})
	require.True(t, ok, string(r.Body))
	return data
}

func (h *harness) send(req *http.Request) response {
	h.t.Helper()
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return response{Status: resp.StatusCode, Header: resp.Header, Body: body}
}

// request sends body as JSON. auth is applied to the request when set.
func (h *harness) request(method, path string, body interface{}, auth func(*http.Request)) response {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if auth != nil {
		auth(req)
	}
	return h.send(req)
}

func (h *harness) customer(user models.User) func(*http.Request) {
	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.Email, time.Hour)
	require.NoError(h.t, err)
	return func(r *http.Request) {
		r.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
}

func (h *harness) admin(username string) func(*http.Request) {
	h.t.Helper()
	testutil.CreateAdmin(h.t, h.db, username)

	res := h.request(http.MethodPost, "/admin/login", map[string]string{
		"username": username,
		"password": "password",
	}, nil)
	require.Equal(h.t, http.StatusOK, res.Status, string(res.Body))

	token, _ := res.JSON(h.t)["token"].(string)
	require.NotEmpty(h.t, token)
	return func(r *http.Request) {
		r.Header.Set(middleware.AdminTokenHeader, token)
	}
}

// placeOrder fills the cart with quantity units of variant and checks out.
func (h *harness) placeOrder(auth func(*http.Request), product models.Product, variant models.ProductVariant, quantity int) string {
	h.t.Helper()

	res := h.request(http.MethodPost, "/cart/add", map[string]interface{}{
		"productId": product.ID.String(),
		"variantId": variant.ID.String(),
		"quantity":  quantity,
	}, auth)
	require.Equal(h.t, http.StatusOK, res.Status, string(res.Body))

	res = h.request(http.MethodPost, "/orders/checkout", map[string]string{"payment_method": "cod"}, auth)
	require.Equal(h.t, http.StatusCreated, res.Status, string(res.Body))

	orderID, _ := res.JSON(h.t)["orderId"].(string)
	require.NotEmpty(h.t, orderID)
	return orderID
}
