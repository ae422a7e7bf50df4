// FILE: internal/pkg/serverutils/response.go
package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/go-playground/validator/v10"

	"realtime-collab-be/internal/collab/document"
	"realtime-collab-be/internal/collab/lock"
	"realtime-collab-be/internal/collab/session"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(message string, code string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Code:    code,
	}
}

var validate = validator.New()

func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// ErrorHandlerMiddleware converts domain errors bubbling out of handlers into
// HTTP responses with a machine-readable code.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message, "http_error"))
		}

		return ctx.Status(statusFor(err)).JSON(ErrorResponse(err.Error(), session.Reason(err)))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, session.ErrLockHeld), errors.Is(err, lock.ErrAlreadyHeld):
		return fiber.StatusConflict
	case errors.Is(err, session.ErrOverloaded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, session.ErrClosed):
		return fiber.StatusGone
	case errors.Is(err, session.ErrResolutionPending):
		return fiber.StatusAccepted
	case errors.Is(err, document.ErrVersionBehind), errors.Is(err, document.ErrVersionAhead):
		return fiber.StatusConflict
	case errors.Is(err, document.ErrOutOfBounds), errors.Is(err, lock.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
