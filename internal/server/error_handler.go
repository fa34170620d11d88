package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/mockupwarp/internal/response"
	"github.com/ivlev/mockupwarp/internal/session"
	"github.com/ivlev/mockupwarp/internal/source"
	"github.com/ivlev/mockupwarp/internal/template"
	"github.com/ivlev/mockupwarp/internal/wizard"
)

type ErrorHandler struct {
	logger *logrus.Logger
}

func NewErrorHandler(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

var domainErrors = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{ErrSessionNotFound, fiber.StatusNotFound, "SESSION_NOT_FOUND", "Session not found"},
	{template.ErrTemplateNotFound, fiber.StatusNotFound, "TEMPLATE_NOT_FOUND", "Template not found"},
	{wizard.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION", "Action is not allowed in the current step"},
	{wizard.ErrEmptyCrop, fiber.StatusBadRequest, "EMPTY_CROP", "Crop rectangle does not overlap the image"},
	{wizard.ErrNoTemplateImage, fiber.StatusUnprocessableEntity, "TEMPLATE_IMAGE_MISSING", "Template has no image"},
	{session.ErrNotReady, fiber.StatusConflict, "NOT_READY", "Nothing rendered yet"},
	{source.ErrDecode, fiber.StatusUnprocessableEntity, "DECODE_ERROR", "Uploaded file is not a supported image"},
	{context.DeadlineExceeded, fiber.StatusRequestTimeout, "TIMEOUT", "Request timed out"},
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(fiber.Map{"error": err.Error()})
	}

	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			h.logger.WithFields(fields).Warn(d.message)
			return c.Status(d.status).JSON(fiber.Map{
				"message": d.message,
				"code":    d.code,
				"error":   err.Error(),
			})
		}
	}

	h.logger.WithFields(fields).Error("Unhandled error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Internal server error",
		"code":    "INTERNAL_SERVER_ERROR",
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
