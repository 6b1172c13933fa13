package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Subscription-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/internal/pricing"
	"github.com/Dhoini/Subscription-microservice/internal/repository"
	"github.com/Dhoini/Subscription-microservice/internal/subscription"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
	"github.com/Dhoini/Subscription-microservice/pkg/req"
)

// OwnerHandler обработчик административных операций владельца приложения.
type OwnerHandler struct {
	controller   *subscription.OwnerController
	catalog      *pricing.Catalog
	destinations repository.DestinationStore
	log          *logger.Logger
}

// NewOwnerHandler создает обработчик операций владельца.
func NewOwnerHandler(controller *subscription.OwnerController, catalog *pricing.Catalog, destinations repository.DestinationStore, log *logger.Logger) *OwnerHandler {
	return &OwnerHandler{
		controller:   controller,
		catalog:      catalog,
		destinations: destinations,
		log:          log,
	}
}

// SetPriceRequest тело запроса изменения цены плана.
type SetPriceRequest struct {
	BillingCycle string  `json:"billing_cycle" validate:"required"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
}

// SetDestinationRequest тело запроса настройки реквизитов получения платежей.
type SetDestinationRequest struct {
	Config map[string]string `json:"config" validate:"required"`
}

// SetPrice изменяет цену плана для периода
func (h *OwnerHandler) SetPrice(c *gin.Context) {
	planID := c.Param("id")

	body, err := req.HandleBody[SetPriceRequest](c, h.log)
	if err != nil {
		return
	}

	if err := h.catalog.SetPrice(planID, domain.BillingCycle(body.BillingCycle), body.Amount); err != nil {
		h.respondError(c, err, "Failed to set plan price")
		return
	}

	plan, err := h.catalog.GetPlan(planID)
	if err != nil {
		h.respondError(c, err, "Failed to get plan")
		return
	}

	c.JSON(http.StatusOK, plan)
}

// ForceActivate принудительно активирует подписку администратора
func (h *OwnerHandler) ForceActivate(c *gin.Context) {
	adminID := c.Param("adminId")

	sub, err := h.controller.ForceActivate(c.Request.Context(), middleware.UserID(c), adminID)
	if err != nil {
		h.respondError(c, err, "Failed to activate subscription")
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Suspend приостанавливает подписку администратора
func (h *OwnerHandler) Suspend(c *gin.Context) {
	adminID := c.Param("adminId")

	sub, err := h.controller.Suspend(c.Request.Context(), middleware.UserID(c), adminID)
	if err != nil {
		h.respondError(c, err, "Failed to suspend subscription")
		return
	}

	c.JSON(http.StatusOK, sub)
}

// SetDestination сохраняет реквизиты владельца для метода оплаты
func (h *OwnerHandler) SetDestination(c *gin.Context) {
	methodID := c.Param("methodId")

	body, err := req.HandleBody[SetDestinationRequest](c, h.log)
	if err != nil {
		return
	}

	if err := h.destinations.SetConfig(c.Request.Context(), methodID, body.Config); err != nil {
		h.log.Errorw("Failed to save payment destination", "methodID", methodID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save payment destination"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"method_id": methodID})
}

// respondError переводит доменные ошибки в HTTP статусы.
func (h *OwnerHandler) respondError(c *gin.Context, err error, fallback string) {
	var unknownCycle *domain.UnknownCycleError

	switch {
	case errors.Is(err, domain.ErrUnknownPlan):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown plan"})
	case errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be greater than zero"})
	case errors.As(err, &unknownCycle):
		c.JSON(http.StatusBadRequest, gin.H{"error": unknownCycle.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStaleSnapshot):
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription was modified concurrently, retry"})
	default:
		h.log.Errorw(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
