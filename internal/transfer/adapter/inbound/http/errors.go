package http_handler

import (
	"errors"
	"fmt"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/pkg/transferapi"
	sdklogger "github.com/anthanhphan/gosdk/logger"
	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	target error
	status int
	code   transferapi.ErrorCode
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrInvalidRequest, fiber.StatusBadRequest, transferapi.CodeInvalidRequest},
	{domain.ErrSessionNotFound, fiber.StatusNotFound, transferapi.CodeSessionNotFound},
	{domain.ErrSessionExpired, fiber.StatusGone, transferapi.CodeSessionExpired},
	{domain.ErrInvalidChunkIndex, fiber.StatusBadRequest, transferapi.CodeInvalidChunkIndex},
	{domain.ErrChunkSizeMismatch, fiber.StatusBadRequest, transferapi.CodeChunkSizeMismatch},
	{domain.ErrInvalidState, fiber.StatusConflict, transferapi.CodeInvalidState},
	{domain.ErrArtifactNotFound, fiber.StatusNotFound, transferapi.CodeArtifactNotFound},
	{domain.ErrRangeNotSatisfiable, fiber.StatusRequestedRangeNotSatisfiable, transferapi.CodeRangeNotSatisfiable},
	{domain.ErrMultiRangeUnsupported, fiber.StatusBadRequest, transferapi.CodeMultiRangeUnsupported},
	{domain.ErrConcurrentModification, fiber.StatusServiceUnavailable, transferapi.CodeInternal},
}

func (s *Server) sendJSONError(c *fiber.Ctx, status int, code transferapi.ErrorCode, message string) error {
	return c.Status(status).JSON(transferapi.ErrorResponse{Error: message, Code: code})
}

// sendServiceError maps a service failure to its status and wire code.
func (s *Server) sendServiceError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		var rangeErr *domain.RangeError
		if errors.As(err, &rangeErr) {
			c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", rangeErr.Size))
		}
		return s.sendJSONError(c, m.status, m.code, err.Error())
	}

	sdklogger.Errorw("Request failed", "method", c.Method(), "path", c.Path(), "error", err.Error())
	return s.sendJSONError(c, fiber.StatusInternalServerError, transferapi.CodeInternal, "internal error")
}
