package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// ReferenceHandler serves lookup tables.
type ReferenceHandler struct {
	service *service.ReferenceService
}

// NewReferenceHandler constructs handler.
func NewReferenceHandler(svc *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{service: svc}
}

// Statuses GET /reference/statuses.
func (h *ReferenceHandler) Statuses(c *fiber.Ctx) error {
	rows, err := h.service.Statuses(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatusItems(rows)})
}

// Severities GET /reference/severities.
func (h *ReferenceHandler) Severities(c *fiber.Ctx) error {
	rows, err := h.service.Severities(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSeverityItems(rows)})
}

// Sites GET /reference/sites.
func (h *ReferenceHandler) Sites(c *fiber.Ctx) error {
	rows, err := h.service.Sites(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSiteItems(rows)})
}

// Assets GET /reference/assets?site_id=.
func (h *ReferenceHandler) Assets(c *fiber.Ctx) error {
	rows, err := h.service.Assets(c.UserContext(), parseOptionalInt(c.Query("site_id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssetItems(rows)})
}

// Vendors GET /reference/vendors.
func (h *ReferenceHandler) Vendors(c *fiber.Ctx) error {
	rows, err := h.service.Vendors(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewVendorItems(rows)})
}

// Resolve GET /reference/resolve?field=status&value=closed.
func (h *ReferenceHandler) Resolve(c *fiber.Ctx) error {
	field, value := c.Query("field"), c.Query("value")
	id, err := h.service.Resolve(field, value)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ResolvedTermResponse{Field: field, Value: value, ID: id}})
}

// Categories GET /reference/categories.
func (h *ReferenceHandler) Categories(c *fiber.Ctx) error {
	rows, err := h.service.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCategoryItems(rows)})
}
