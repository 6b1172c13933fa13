package req

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Dhoini/Subscription-microservice/pkg/logger"
	"github.com/Dhoini/Subscription-microservice/pkg/res"
)

var validate = validator.New()

// IsValid валидирует структуру типа T.
func IsValid[T any](payload T) error {
	return validate.Struct(payload)
}

// HandleBody декодирует, валидирует и обрабатывает тело запроса.
// При ошибке ответ уже записан, вызывающий просто выходит.
func HandleBody[T any](c *gin.Context, log *logger.Logger) (*T, error) {
	var payload T
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Warnw("Failed to decode request body", "path", c.Request.URL.Path, "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request format"}, http.StatusUnprocessableEntity)
		return nil, err
	}

	if err := IsValid(payload); err != nil {
		log.Warnw("Request body validation failed", "path", c.Request.URL.Path, "error", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid request data", Details: err.Error()}, http.StatusUnprocessableEntity)
		return nil, err
	}

	return &payload, nil
}
