package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/config"
	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/services"
	"github.com/example/ricestore/internal/utils"
)

// AdminHandler serves the back-office: sessions, reporting, orders and users.
type AdminHandler struct {
	db       *gorm.DB
	cfg      *config.Config
	sessions services.SessionStore
	orders   *services.OrderService
	reports  *services.ReportService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, cfg *config.Config, sessions services.SessionStore, orders *services.OrderService, reports *services.ReportService) *AdminHandler {
	return &AdminHandler{db: db, cfg: cfg, sessions: sessions, orders: orders, reports: reports}
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login opens an admin session and sets the session cookie.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req adminLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var admin models.Admin
	if err := h.db.WithContext(c.UserContext()).
		Where("username = ?", strings.TrimSpace(req.Username)).First(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}
	if !utils.CheckPassword(admin.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	identity := services.AdminIdentity{
		AdminID:     admin.ID,
		Username:    admin.Username,
		DisplayName: admin.DisplayName,
	}
	token, err := h.sessions.Create(c.UserContext(), identity)
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token, time.Now().Add(h.cfg.AdminSessionTTL))
	log.Info().Str("admin", admin.Username).Msg("admin logged in")

	return c.JSON(fiber.Map{"success": true, "token": token, "data": identity})
}

// Logout ends the current admin session.
func (h *AdminHandler) Logout(c *fiber.Ctx) error {
	if token := middleware.AdminToken(c); token != "" {
		if err := h.sessions.Delete(c.UserContext(), token); err != nil {
			return err
		}
	}
	h.setSessionCookie(c, "", time.Unix(0, 0))
	return c.JSON(fiber.Map{"success": true, "message": "logged out"})
}

func (h *AdminHandler) setSessionCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AdminCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

type adminProfileRequest struct {
	DisplayName     string `json:"display_name"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfile changes the display name and optionally the password, then
// refreshes the live session so the new name shows immediately.
func (h *AdminHandler) UpdateProfile(c *fiber.Ctx) error {
	current := middleware.CurrentAdmin(c)
	if current == nil {
		return services.ErrUnauthorized
	}

	var req adminProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var admin models.Admin
	if err := h.db.WithContext(c.UserContext()).First(&admin, "id = ?", current.AdminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.ErrUnauthorized
		}
		return err
	}

	updates := map[string]interface{}{}
	if v := strings.TrimSpace(req.DisplayName); v != "" {
		updates["display_name"] = v
	}
	if req.NewPassword != "" {
		if !utils.CheckPassword(admin.PasswordHash, req.CurrentPassword) {
			return fiber.NewError(fiber.StatusBadRequest, "current password is incorrect")
		}
		if len(req.NewPassword) < utils.MinPasswordLength {
			return fiber.NewError(fiber.StatusBadRequest, "password is too short")
		}
		hash, err := utils.HashPassword(req.NewPassword)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
		}
		updates["password_hash"] = hash
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	if err := h.db.WithContext(c.UserContext()).Model(&admin).Updates(updates).Error; err != nil {
		return err
	}

	identity := *current
	if name, ok := updates["display_name"].(string); ok {
		identity.DisplayName = name
	}
	if err := h.sessions.Update(c.UserContext(), middleware.AdminToken(c), identity); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": identity})
}

// Dashboard returns the back-office metrics.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.reports.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": dashboard})
}

// Inventory returns every variant with its stock status.
func (h *AdminHandler) Inventory(c *fiber.Ctx) error {
	items, err := h.reports.Inventory(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

// OrdersPDF streams the filtered order list as a PDF document.
func (h *AdminHandler) OrdersPDF(c *fiber.Ctx) error {
	filter := services.OrderFilter{Status: c.Query("status"), Search: c.Query("search")}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="orders.pdf"`)
	return h.reports.WriteOrdersPDF(c.UserContext(), c.Response().BodyWriter(), filter)
}

// ListOrders pages through all orders with optional status and search filters.
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	status := c.Query("status")
	if status != "" && !models.OrderStatus(status).Valid() {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status")
	}

	orders, total, err := h.orders.ListAllOrders(c.UserContext(),
		services.OrderFilter{Status: status, Search: c.Query("search")}, pg)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders, "pagination": pg.Meta(total)})
}

func (h *AdminHandler) transition(target models.OrderStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return err
		}

		order, err := h.orders.Transition(c.UserContext(), id, target)
		if err != nil {
			return err
		}

		log.Info().
			Str("order", order.OrderNumber).
			Str("status", string(order.Status)).
			Str("admin", adminName(c)).
			Msg("order status changed")
		return c.JSON(fiber.Map{"success": true, "data": order})
	}
}

// ApproveOrder moves a pending order to processing.
func (h *AdminHandler) ApproveOrder(c *fiber.Ctx) error {
	return h.transition(models.OrderStatusProcessing)(c)
}

func (h *AdminHandler) OutForDelivery(c *fiber.Ctx) error {
	return h.transition(models.OrderStatusOutForDelivery)(c)
}

func (h *AdminHandler) MarkDelivered(c *fiber.Ctx) error {
	return h.transition(models.OrderStatusDelivered)(c)
}

// RejectOrder cancels the order and restocks its variants.
func (h *AdminHandler) RejectOrder(c *fiber.Ctx) error {
	return h.transition(models.OrderStatusCancelled)(c)
}

type deliveryRequest struct {
	DeliveryDate string `json:"delivery_date"`
	DeliveryTime string `json:"delivery_time"`
	TrackingNote string `json:"tracking_note"`
}

// UpdateDelivery sets the delivery schedule of an order.
func (h *AdminHandler) UpdateDelivery(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req deliveryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.DeliveryDate != "" {
		if _, err := time.Parse("2006-01-02", req.DeliveryDate); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "delivery_date must be YYYY-MM-DD")
		}
	}

	order, err := h.orders.UpdateDelivery(c.UserContext(), id, services.DeliveryUpdate{
		Date: req.DeliveryDate,
		Time: req.DeliveryTime,
		Note: req.TrackingNote,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

type userStats struct {
	UserID     uuid.UUID
	OrderCount int64
	TotalSpent decimal.Decimal
}

// ListUsers pages through customers with their order count and spend.
// Cancelled orders do not count towards total_spent.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	db := h.db.WithContext(c.UserContext())
	query := db.Model(&models.User{})

	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").Limit(pg.Limit).Offset(pg.Offset).Find(&users).Error; err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	stats := map[uuid.UUID]userStats{}
	if len(ids) > 0 {
		var rows []userStats
		if err := db.Model(&models.Order{}).
			Select("user_id, COUNT(*) AS order_count, COALESCE(SUM(CASE WHEN status <> ? THEN total_amount ELSE 0 END), 0) AS total_spent", models.OrderStatusCancelled).
			Where("user_id IN ?", ids).
			Group("user_id").
			Scan(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			stats[row.UserID] = row
		}
	}

	data := make([]fiber.Map, 0, len(users))
	for _, u := range users {
		item := userResponse(u)
		item["created_at"] = u.CreatedAt
		item["order_count"] = stats[u.ID].OrderCount
		item["total_spent"] = stats[u.ID].TotalSpent
		data = append(data, item)
	}

	return c.JSON(fiber.Map{"success": true, "data": data, "pagination": pg.Meta(total)})
}

type editUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// EditUser updates a customer's details; a non-empty password resets it.
func (h *AdminHandler) EditUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.UserContext())
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	var req editUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if v := strings.TrimSpace(req.FirstName); v != "" {
		updates["first_name"] = v
	}
	if v := strings.TrimSpace(req.LastName); v != "" {
		updates["last_name"] = v
	}
	if email := normalizeEmail(req.Email); email != "" && email != user.Email {
		if !strings.Contains(email, "@") {
			return fiber.NewError(fiber.StatusBadRequest, "invalid email address")
		}
		var taken int64
		if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fiber.NewError(fiber.StatusConflict, "email already registered")
		}
		updates["email"] = email
	}
	if req.Password != "" {
		if len(req.Password) < utils.MinPasswordLength {
			return fiber.NewError(fiber.StatusBadRequest, "password is too short")
		}
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
		}
		updates["password_hash"] = hash
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return err
	}
	if err := db.First(&user, "id = ?", user.ID).Error; err != nil {
		return err
	}

	log.Info().Str("user", user.Email).Str("admin", adminName(c)).Msg("user updated")
	return c.JSON(fiber.Map{"success": true, "data": userResponse(user)})
}

// DeleteUser removes a customer without order history together with their
// cart and address book. Customers with orders are kept for the records.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "user not found")
			}
			return err
		}

		var orders int64
		if err := tx.Model(&models.Order{}).Where("user_id = ?", id).Count(&orders).Error; err != nil {
			return err
		}
		if orders > 0 {
			return fiber.NewError(fiber.StatusConflict, "user has orders and cannot be deleted")
		}

		if err := tx.Where("user_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserAddress{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Rating{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return err
	}

	log.Info().Str("user_id", id.String()).Str("admin", adminName(c)).Msg("user deleted")
	return c.JSON(fiber.Map{"success": true, "message": "user deleted"})
}

func adminName(c *fiber.Ctx) string {
	if admin := middleware.CurrentAdmin(c); admin != nil {
		return admin.Username
	}
	return ""
}
