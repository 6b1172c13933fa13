package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dhoini/Subscription-microservice/internal/api/rest/handlers"
	"github.com/Dhoini/Subscription-microservice/internal/api/rest/middleware"
	"github.com/Dhoini/Subscription-microservice/pkg/logger"
)

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(
	subscriptionHandler *handlers.SubscriptionHandler,
	ownerHandler *handlers.OwnerHandler,
	auth *middleware.JWTMiddleware,
	registry *prometheus.Registry,
	log *logger.Logger,
) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	r.GET("/health", handlers.HealthCheck)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		// Каталог планов доступен любой аутентифицированной роли
		v1.GET("/plans", auth.RequireAuth(middleware.ScopeAdmin, middleware.ScopeOwner), subscriptionHandler.ListPlans)

		// Мастер апгрейда администратора
		sub := v1.Group("/subscription", auth.RequireAuth(middleware.ScopeAdmin))
		{
			sub.GET("", subscriptionHandler.GetSubscription)
			sub.POST("/upgrade", subscriptionHandler.InitiateUpgrade)
			sub.POST("/upgrade/method", subscriptionHandler.SelectMethod)
			sub.POST("/upgrade/details", subscriptionHandler.SubmitDetails)
			sub.POST("/upgrade/verify", subscriptionHandler.SubmitVerification)
			sub.POST("/upgrade/resume", subscriptionHandler.ResumeProcessing)
			sub.POST("/cancel", subscriptionHandler.CancelSubscription)
		}

		// Операции владельца
		owner := v1.Group("/owner", auth.RequireAuth(middleware.ScopeOwner))
		{
			owner.PUT("/plans/:id/price", ownerHandler.SetPrice)
			owner.PUT("/destinations/:methodId", ownerHandler.SetDestination)
			owner.POST("/subscriptions/:adminId/activate", ownerHandler.ForceActivate)
			owner.POST("/subscriptions/:adminId/suspend", ownerHandler.Suspend)
		}
	}

	return r
}
