package handlers_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/testutil"
)

func TestAdminSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	testutil.CreateAdmin(t, h.db, "ana")

	res := h.request(http.MethodPost, "/admin/login", map[string]string{"username": "ana", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)

	res = h.request(http.MethodPost, "/admin/login", map[string]string{"username": "ana", "password": "password"}, nil)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Header.Get("Set-Cookie"), middleware.AdminCookie+"=")
	token, _ := res.JSON(t)["token"].(string)
	auth := func(r *http.Request) { r.Header.Set(middleware.AdminTokenHeader, token) }

	res = h.request(http.MethodPost, "/admin/update-profile", map[string]string{"display_name": "Ana Reyes"}, auth)
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))

	identity, err := h.sessions.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Ana Reyes", identity.DisplayName)

	res = h.request(http.MethodPost, "/admin/update-profile", map[string]string{
		"current_password": "wrong",
		"new_password":     "another-secret",
	}, auth)
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = h.request(http.MethodPost, "/admin/logout", nil, auth)
	require.Equal(t, http.StatusOK, res.Status)

	res = h.request(http.MethodGet, "/admin/dashboard", nil, auth)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	h := newHarness(t)
	customer := h.customer(testutil.CreateUser(t, h.db, "juan@example.com"))

	res := h.request(http.MethodGet, "/admin/dashboard", nil, customer)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	assert.Equal(t, false, res.JSON(t)["success"])
}

func TestAdminOrderWorkflow(t *testing.T) {
	h := newHarness(t)
	admin := h.admin("ana")
	customer := h.customer(testutil.CreateUser(t, h.db, "juan@example.com"))
	product, variant := testutil.CreateProduct(t, h.db, "Jasmine", 800, 10)

	delivered := h.placeOrder(customer, product, variant, 2)
	rejected := h.placeOrder(customer, product, variant, 3)
	assert.Equal(t, 5, testutil.Stock(t, h.db, variant))

	res := h.request(http.MethodGet, "/admin/orders?status=pending", nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	orders, _ := res.JSON(t)["data"].([]interface{})
	assert.Len(t, orders, 2)

	res = h.request(http.MethodGet, "/admin/orders?status=shipped", nil, admin)
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = h.request(http.MethodPost, "/admin/order/delivered/"+delivered, nil, admin)
	assert.Equal(t, http.StatusConflict, res.Status)

	for _, step := range []string{"approve", "out-for-delivery", "delivered"} {
		res = h.request(http.MethodPost, "/admin/order/"+step+"/"+delivered, nil, admin)
		require.Equal(t, http.StatusOK, res.Status, step+": "+string(res.Body))
	}
	assert.Equal(t, string(models.OrderStatusDelivered), res.Data(t)["status"])

	res = h.request(http.MethodPost, "/admin/order/reject/"+delivered, nil, admin)
	assert.Equal(t, http.StatusConflict, res.Status)

	res = h.request(http.MethodPost, "/admin/order/reject/"+rejected, nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, 8, testutil.Stock(t, h.db, variant))

	res = h.request(http.MethodPost, "/admin/order/update-delivery/"+rejected, map[string]string{
		"delivery_date": "2026-01-05",
	}, admin)
	assert.Equal(t, http.StatusConflict, res.Status)

	res = h.request(http.MethodPost, "/admin/order/update-delivery/"+delivered, map[string]string{
		"delivery_date": "05/01/2026",
	}, admin)
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = h.request(http.MethodPost, "/admin/order/update-delivery/"+delivered, map[string]string{
		"delivery_date": "2026-01-05",
		"delivery_time": "09:00-12:00",
		"tracking_note": "Rider: Mark",
	}, admin)
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	assert.Equal(t, "Rider: Mark", res.Data(t)["tracking_note"])

	res = h.request(http.MethodPost, "/admin/order/approve/not-a-uuid", nil, admin)
	assert.Equal(t, http.StatusBadRequest, res.Status)
}

func TestAdminReports(t *testing.T) {
	h := newHarness(t)
	admin := h.admin("ana")
	customer := h.customer(testutil.CreateUser(t, h.db, "juan@example.com"))
	product, variant := testutil.CreateProduct(t, h.db, "Jasmine", 800, 30)
	h.placeOrder(customer, product, variant, 6)

	res := h.request(http.MethodGet, "/admin/dashboard", nil, admin)
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	data := res.Data(t)
	assert.EqualValues(t, 1, data["open_order_count"])
	assert.EqualValues(t, 1, data["low_stock_count"])

	res = h.request(http.MethodGet, "/admin/inventory", nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, string(res.Body), `"status":"low-stock"`)

	res = h.request(http.MethodGet, "/admin/reports/orders.pdf", nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "application/pdf", res.Header.Get(fiber.HeaderContentType))
	assert.True(t, bytes.HasPrefix(res.Body, []byte("%PDF")))
}

func productForm(t *testing.T, fields map[string][]string, image string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(key, v))
		}
	}
	if image != "" {
		part, err := w.CreateFormFile("image", image)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestAdminProductManagement(t *testing.T) {
	h := newHarness(t)
	admin := h.admin("ana")

	body, contentType := productForm(t, map[string][]string{
		"name":           {"Dinorado"},
		"description":    {"Aromatic mountain rice"},
		"base_price":     {"1200"},
		"weight_label[]": {"25kg", "50kg"},
		"price[]":        {"1200", "2300"},
		"stock[]":        {"10", "4"},
	}, "sack.png")
	req := httptest.NewRequest(http.MethodPost, "/admin/add-product", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	admin(req)
	res := h.send(req)
	require.Equal(t, http.StatusCreated, res.Status, string(res.Body))

	created := res.Data(t)
	productID, _ := created["id"].(string)
	require.NotEmpty(t, productID)
	assert.NotEmpty(t, created["image"])
	variants, _ := created["variants"].([]interface{})
	require.Len(t, variants, 2)

	res = h.request(http.MethodGet, "/admin/product/"+productID+"/variants", nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	listed, _ := res.JSON(t)["data"].([]interface{})
	require.Len(t, listed, 2)
	first := listed[0].(map[string]interface{})
	assert.Equal(t, "25kg", first["weight_label"])
	assert.Equal(t, "25", first["kilograms"])
	assert.Equal(t, "low-stock", first["stock_status"])

	res = h.request(http.MethodPost, "/admin/product/edit-variants/"+productID, map[string]interface{}{
		"variants": []map[string]interface{}{{"id": first["id"], "price": "1250", "stock": -1}},
	}, admin)
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = h.request(http.MethodPost, "/admin/product/edit-variants/"+productID, map[string]interface{}{
		"variants": []map[string]interface{}{
			{"id": first["id"], "price": "1250", "stock": 40},
			{"weight_label": "5kg", "kilograms": "5", "price": "280", "stock": 0},
		},
	}, admin)
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	listed, _ = res.JSON(t)["data"].([]interface{})
	require.Len(t, listed, 3)
	assert.Equal(t, "out-of-stock", listed[0].(map[string]interface{})["stock_status"])

	body, contentType = productForm(t, map[string][]string{"name": {"Dinorado Premium"}}, "")
	req = httptest.NewRequest(http.MethodPost, "/admin/product/edit/"+productID, body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	admin(req)
	res = h.send(req)
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	assert.Equal(t, "Dinorado Premium", res.Data(t)["name"])

	res = h.request(http.MethodPost, "/admin/product/delete/"+productID, nil, admin)
	require.Equal(t, http.StatusOK, res.Status)

	res = h.request(http.MethodGet, "/products/"+productID, nil, nil)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.EqualValues(t, 3, testutil.Count(t, h.db, &models.ProductVariant{}))
}

func TestAddProductValidatesVariants(t *testing.T) {
	h := newHarness(t)
	admin := h.admin("ana")

	body, contentType := productForm(t, map[string][]string{
		"name":           {"Dinorado"},
		"base_price":     {"1200"},
		"weight_label[]": {"25kg", "50kg"},
		"price[]":        {"1200"},
		"stock[]":        {"10", "4"},
	}, "")
	req := httptest.NewRequest(http.MethodPost, "/admin/add-product", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	admin(req)
	assert.Equal(t, http.StatusBadRequest, h.send(req).Status)

	body, contentType = productForm(t, map[string][]string{
		"name":           {"Dinorado"},
		"base_price":     {"1200"},
		"weight_label[]": {"25kg"},
		"price[]":        {"1200"},
		"stock[]":        {"10"},
	}, "sack.exe")
	req = httptest.NewRequest(http.MethodPost, "/admin/add-product", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	admin(req)
	assert.Equal(t, http.StatusBadRequest, h.send(req).Status)
	assert.Zero(t, testutil.Count(t, h.db, &models.Product{}))
}

func TestAdminUserManagement(t *testing.T) {
	h := newHarness(t)
	admin := h.admin("ana")
	buyer := testutil.CreateUser(t, h.db, "juan@example.com")
	idle := testutil.CreateUser(t, h.db, "pedro@example.com")
	product, variant := testutil.CreateProduct(t, h.db, "Jasmine", 800, 10)
	h.placeOrder(h.customer(buyer), product, variant, 2)

	res := h.request(http.MethodGet, "/admin/users?search=juan@", nil, admin)
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	users, _ := res.JSON(t)["data"].([]interface{})
	require.Len(t, users, 1)
	row := users[0].(map[string]interface{})
	assert.EqualValues(t, 1, row["order_count"])
	assert.Equal(t, "1700", row["total_spent"])

	res = h.request(http.MethodPost, "/admin/users/edit/"+idle.ID.String(), map[string]string{
		"email": "juan@example.com",
	}, admin)
	assert.Equal(t, http.StatusConflict, res.Status)

	res = h.request(http.MethodPost, "/admin/users/edit/"+idle.ID.String(), map[string]string{
		"first_name": "Pedro",
		"password":   "new-secret",
	}, admin)
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))

	res = h.request(http.MethodPost, "/auth/login", map[string]string{
		"email":    "pedro@example.com",
		"password": "new-secret",
	}, nil)
	assert.Equal(t, http.StatusOK, res.Status)

	res = h.request(http.MethodDelete, "/admin/users/delete/"+buyer.ID.String(), nil, admin)
	assert.Equal(t, http.StatusConflict, res.Status)

	res = h.request(http.MethodDelete, "/admin/users/delete/"+idle.ID.String(), nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	assert.EqualValues(t, 1, testutil.Count(t, h.db, &models.User{}))

	res = h.request(http.MethodDelete, "/admin/users/delete/"+idle.ID.String(), nil, admin)
	assert.Equal(t, http.StatusNotFound, res.Status)
}

func TestAdminPaymentMethods(t *testing.T) {
	h := newHarness(t)
	admin := h.admin("ana")
	customer := h.customer(testutil.CreateUser(t, h.db, "juan@example.com"))
	product, variant := testutil.CreateProduct(t, h.db, "Jasmine", 800, 10)
	h.placeOrder(customer, product, variant, 1)

	res := h.request(http.MethodPost, "/admin/payment-methods", map[string]string{
		"code": "Maya",
		"name": "Maya Wallet",
	}, admin)
	require.Equal(t, http.StatusCreated, res.Status, string(res.Body))
	mayaID, _ := res.Data(t)["id"].(string)
	assert.Equal(t, "maya", res.Data(t)["code"])

	res = h.request(http.MethodPost, "/admin/payment-methods", map[string]string{
		"code": "maya",
		"name": "Again",
	}, admin)
	assert.Equal(t, http.StatusConflict, res.Status)

	res = h.request(http.MethodPut, "/admin/payment-methods/"+mayaID, map[string]interface{}{
		"instructions": "Scan the store QR code.",
	}, admin)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Scan the store QR code.", res.Data(t)["instructions"])

	res = h.request(http.MethodDelete, "/admin/payment-methods/"+mayaID, nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "payment method deleted", res.JSON(t)["message"])

	var cod models.PaymentMethod
	require.NoError(t, h.db.First(&cod, "code = ?", "cod").Error)
	res = h.request(http.MethodDelete, "/admin/payment-methods/"+cod.ID.String(), nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "payment method deactivated", res.JSON(t)["message"])

	res = h.request(http.MethodGet, "/admin/payment-methods", nil, admin)
	require.Equal(t, http.StatusOK, res.Status)
	all, _ := res.JSON(t)["data"].([]interface{})
	assert.Len(t, all, 3)
}
