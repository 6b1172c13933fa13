package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Subscription-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Subscription-microservice/internal/domain"
	"github.com/Dhoini/Subscription-microservice/internal/pricing"
	"github.com/Dhoini/Subscription-microservice/internal/subscription"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
	"github.com/Dhoini/Subscription-microservice/pkg/req"
)

// SubscriptionHandler обработчик мастера апгрейда подписки администратора.
type SubscriptionHandler struct {
	machine *subscription.StateMachine
	catalog *pricing.Catalog
	log     *logger.Logger
}

// NewSubscriptionHandler создает обработчик подписок.
func NewSubscriptionHandler(machine *subscription.StateMachine, catalog *pricing.Catalog, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		machine: machine,
		catalog: catalog,
		log:     log,
	}
}

// UpgradeRequest тело запроса начала апгрейда.
type UpgradeRequest struct {
	PlanID       string `json:"plan_id" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"required"`
}

// SelectMethodRequest тело запроса выбора метода оплаты.
type SelectMethodRequest struct {
	MethodID string `json:"method_id" validate:"required"`
}

// DetailsRequest тело запроса с реквизитами администратора.
type DetailsRequest struct {
	Fields map[string]string `json:"fields" validate:"required"`
}

// VerifyRequest тело запроса с кодом подтверждения.
type VerifyRequest struct {
	Code string `json:"code" validate:"required"`
}

// GetSubscription возвращает снимок подписки и состояние мастера.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	snapshot, err := h.machine.GetSubscription(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.log.Errorw("Failed to get subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get subscription"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// ListPlans возвращает каталог планов для мастера.
func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.ListPlans())
}

// InitiateUpgrade начинает попытку апгрейда
func (h *SubscriptionHandler) InitiateUpgrade(c *gin.Context) {
	body, err := req.HandleBody[UpgradeRequest](c, h.log)
	if err != nil {
		return
	}

	attempt, err := h.machine.InitiateUpgrade(c.Request.Context(), middleware.UserID(c),
		body.PlanID, domain.BillingCycle(body.BillingCycle))
	if err != nil {
		h.respondError(c, err, "Failed to initiate upgrade")
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// SelectMethod выбирает метод оплаты
func (h *SubscriptionHandler) SelectMethod(c *gin.Context) {
	body, err := req.HandleBody[SelectMethodRequest](c, h.log)
	if err != nil {
		return
	}

	attempt, err := h.machine.SelectMethod(c.Request.Context(), middleware.UserID(c), body.MethodID)
	if err != nil {
		h.respondError(c, err, "Failed to select payment method")
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitDetails принимает реквизиты и запускает отправку кода
func (h *SubscriptionHandler) SubmitDetails(c *gin.Context) {
	body, err := req.HandleBody[DetailsRequest](c, h.log)
	if err != nil {
		return
	}

	attempt, err := h.machine.SubmitDetails(c.Request.Context(), middleware.UserID(c), body.Fields)
	if err != nil {
		h.respondError(c, err, "Failed to submit payment details")
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SubmitVerification сверяет код и при успехе рассчитывает платеж
func (h *SubscriptionHandler) SubmitVerification(c *gin.Context) {
	body, err := req.HandleBody[VerifyRequest](c, h.log)
	if err != nil {
		return
	}

	sub, err := h.machine.SubmitVerification(c.Request.Context(), middleware.UserID(c), body.Code)
	if err != nil {
		h.respondError(c, err, "Failed to verify payment")
		return
	}

	c.JSON(http.StatusOK, sub)
}

// ResumeProcessing возобновляет расчет застрявшей попытки
func (h *SubscriptionHandler) ResumeProcessing(c *gin.Context) {
	sub, err := h.machine.ResumeProcessing(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err, "Failed to resume processing")
		return
	}

	c.JSON(http.StatusOK, sub)
}

// CancelSubscription отменяет активную подписку
func (h *SubscriptionHandler) CancelSubscription(c *gin.Context) {
	sub, err := h.machine.Cancel(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err, "Failed to cancel subscription")
		return
	}

	c.JSON(http.StatusOK, sub)
}

// respondError переводит доменные ошибки в HTTP статусы.
func (h *SubscriptionHandler) respondError(c *gin.Context, err error, fallback string) {
	var missingFields *domain.MissingFieldsError
	var unknownCycle *domain.UnknownCycleError

	switch {
	case errors.As(err, &missingFields):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Missing required payment fields",
			"missing_fields": missingFields.Fields,
		})
	case errors.Is(err, domain.ErrUnknownPlan):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown plan"})
	case errors.Is(err, domain.ErrUnknownMethod):
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown payment method"})
	case errors.As(err, &unknownCycle):
		c.JSON(http.StatusBadRequest, gin.H{"error": unknownCycle.Error()})
	case errors.Is(err, domain.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verification code"})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStaleSnapshot):
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription was modified concurrently, retry"})
	default:
		h.log.Errorw(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
