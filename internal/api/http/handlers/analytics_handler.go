package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// AnalyticsHandler serves cached reports.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// TicketsByStatus GET /analytics/tickets-by-status.
func (h *AnalyticsHandler) TicketsByStatus(c *fiber.Ctx) error {
	buckets, err := h.service.TicketsByStatus(c.UserContext())
	return h.respondBuckets(c, buckets, err)
}

// OpenBySite GET /analytics/open-by-site.
func (h *AnalyticsHandler) OpenBySite(c *fiber.Ctx) error {
	buckets, err := h.service.OpenBySite(c.UserContext())
	return h.respondBuckets(c, buckets, err)
}

// OpenByAssignee GET /analytics/open-by-assignee.
func (h *AnalyticsHandler) OpenByAssignee(c *fiber.Ctx) error {
	buckets, err := h.service.OpenByAssignee(c.UserContext())
	return h.respondBuckets(c, buckets, err)
}

// WaitingOnUser GET /analytics/waiting-on-user.
func (h *AnalyticsHandler) WaitingOnUser(c *fiber.Ctx) error {
	buckets, err := h.service.WaitingOnUser(c.UserContext())
	return h.respondBuckets(c, buckets, err)
}

func (h *AnalyticsHandler) respondBuckets(c *fiber.Ctx, buckets []domain.CountBucket, err error) error {
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCountBuckets(buckets)})
}

// SLABreaches GET /analytics/sla-breaches?days=.
func (h *AnalyticsHandler) SLABreaches(c *fiber.Ctx) error {
	report, err := h.service.SLABreaches(c.UserContext(), parseInt(c.Query("days"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLAReport(report)})
}

// Trend GET /analytics/trend?days=.
func (h *AnalyticsHandler) Trend(c *fiber.Ctx) error {
	points, err := h.service.Trend(c.UserContext(), parseInt(c.Query("days"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTrend(points)})
}

// Staff GET /analytics/staff?email=.
func (h *AnalyticsHandler) Staff(c *fiber.Ctx) error {
	report, err := h.service.Staff(c.UserContext(), c.Query("email"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffReport(report)})
}

// ClearCache DELETE /analytics/cache.
func (h *AnalyticsHandler) ClearCache(c *fiber.Ctx) error {
	if err := h.service.ClearCache(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
