package httpapi

import (
	"errors"
	"net/http"

	"cart-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// BaseError универсальный формат ошибки
// Code: машинно-ориентированный код (snake_case)
// Fields: для валидационных ошибок
type BaseError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag,omitempty"`
}

func NewValidationError(msg string, fields []FieldError) BaseError {
	return BaseError{Code: "validation_error", Message: msg, Fields: fields}
}
func NewConflictError(msg string) BaseError {
	return BaseError{Code: "conflict", Message: msg}
}
func NewUnauthorizedError(msg string) BaseError {
	return BaseError{Code: "unauthorized", Message: msg}
}
func NewForbiddenError(msg string) BaseError {
	return BaseError{Code: "forbidden", Message: msg}
}
func NewNotFoundError(msg string) BaseError {
	return BaseError{Code: "not_found", Message: msg}
}
func NewInternalError(details string) BaseError {
	return BaseError{Code: "internal_error", Message: "internal server error", Details: details}
}

// bindError превращает ошибку биндинга gin в validation_error с полями.
func bindError(c *gin.Context, err error) {
	var fields []FieldError
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: fe.Error(), Tag: fe.Tag()})
		}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, NewValidationError("invalid request", fields))
}

func writeError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewUnauthorizedError(err.Error()))
	case errors.Is(err, service.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, NewForbiddenError(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, NewNotFoundError(err.Error()))
	case errors.Is(err, service.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, NewValidationError(err.Error(), nil))
	case service.IsFailedPrecondition(err):
		c.AbortWithStatusJSON(http.StatusConflict, BaseError{Code: "failed_precondition", Message: err.Error()})
	case service.IsAlreadyExists(err):
		c.AbortWithStatusJSON(http.StatusConflict, NewConflictError(err.Error()))
	case errors.Is(err, service.ErrStorageConflict):
		c.AbortWithStatusJSON(http.StatusConflict, BaseError{Code: "storage_conflict", Message: "concurrent update, retry later"})
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, NewInternalError(""))
	}
}
