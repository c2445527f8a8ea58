package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/ricestore/internal/middleware"
	"github.com/example/ricestore/internal/models"
	"github.com/example/ricestore/internal/services"
	"github.com/example/ricestore/internal/utils"
)

// ProfileHandler manages the customer profile and address book.
type ProfileHandler struct {
	db     *gorm.DB
	images services.ImageStore
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, images services.ImageStore) *ProfileHandler {
	return &ProfileHandler{db: db, images: images}
}

func (h *ProfileHandler) currentUser(c *fiber.Ctx) (models.User, error) {
	var user models.User
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return user, services.ErrUnauthorized
	}
	err := h.db.WithContext(c.UserContext()).First(&user, "id = ?", customer.ID).Error
	return user, err
}

// GetProfile returns the authenticated user's profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	data := userResponse(user)
	data["created_at"] = user.CreatedAt
	return c.JSON(fiber.Map{"success": true, "data": data})
}

type updateProfileRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfile changes name fields and optionally the password.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
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
	if req.NewPassword != "" {
		if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
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
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

// UploadPhoto replaces the profile photo with the "photo" form file.
func (h *ProfileHandler) UploadPhoto(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "photo is required")
	}

	name, err := h.images.Save(file)
	if err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).
		Where("id = ?", user.ID).Update("profile_photo", name).Error; err != nil {
		_ = h.images.Delete(name)
		return err
	}
	_ = h.images.Delete(user.ProfilePhoto)

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"profile_photo": name}})
}

// ListAddresses returns the user's addresses.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.ErrUnauthorized
	}

	var addresses []models.UserAddress
	if err := h.db.WithContext(c.UserContext()).Where("user_id = ?", customer.ID).
		Order("created_at asc").Find(&addresses).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

type addressRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	Region      string `json:"region"`
	PostalCode  string `json:"postal_code"`
	Phone       string `json:"phone"`
}

// CreateAddress adds an address for the user.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.ErrUnauthorized
	}

	var req addressRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.AddressLine) == "" || strings.TrimSpace(req.City) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "address_line and city are required")
	}

	address := models.UserAddress{
		UserID:      customer.ID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		AddressLine: req.AddressLine,
		City:        req.City,
		Region:      req.Region,
		PostalCode:  req.PostalCode,
		Phone:       req.Phone,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&address).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": address})
}

type updateAddressRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	AddressLine *string `json:"address_line"`
	City        *string `json:"city"`
	Region      *string `json:"region"`
	PostalCode  *string `json:"postal_code"`
	Phone       *string `json:"phone"`
}

// UpdateAddress patches one of the user's addresses.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.ErrUnauthorized
	}

	addrID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req updateAddressRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	for column, value := range map[string]*string{
		"first_name":   req.FirstName,
		"last_name":    req.LastName,
		"address_line": req.AddressLine,
		"city":         req.City,
		"region":       req.Region,
		"postal_code":  req.PostalCode,
		"phone":        req.Phone,
	} {
		if value != nil {
			updates[column] = *value
		}
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	res := h.db.WithContext(c.UserContext()).Model(&models.UserAddress{}).
		Where("id = ? AND user_id = ?", addrID, customer.ID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "address not found")
	}

	return c.JSON(fiber.Map{"success": true, "message": "address updated"})
}

// DeleteAddress removes one of the user's addresses.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	customer := middleware.CurrentCustomer(c)
	if customer == nil {
		return services.ErrUnauthorized
	}

	addrID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.db.WithContext(c.UserContext()).Where("id = ? AND user_id = ?", addrID, customer.ID).
		Delete(&models.UserAddress{}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "address deleted"})
}
