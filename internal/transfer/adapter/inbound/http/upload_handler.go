package http_handler

import (
	"strconv"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/anthanhphan/go-resumable-transfer/pkg/transferapi"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleInit(c *fiber.Ctx) error {
	var req transferapi.InitRequest
	if err := c.BodyParser(&req); err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, transferapi.CodeInvalidRequest, "Invalid JSON body")
	}

	sess, err := s.uploads.InitUpload(c.UserContext(), domain.InitRequest{
		OwnerID:     c.Get(transferapi.HeaderOwnerID),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		TotalSize:   req.TotalSize,
		ChunkSize:   req.ChunkSize,
	})
	if err != nil {
		return s.sendServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transferapi.InitResponse{
		SessionID:   sess.ID,
		ChunkSize:   sess.ChunkSize,
		TotalChunks: sess.TotalChunks,
	})
}

func (s *Server) handleChunk(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, transferapi.CodeInvalidChunkIndex, "Chunk index must be an integer")
	}

	progress, err := s.uploads.AcceptChunk(c.UserContext(), c.Params("id"), index, c.Body())
	if err != nil {
		return s.sendServiceError(c, err)
	}

	return c.JSON(transferapi.ChunkResponse{
		ChunkIndex:      progress.ChunkIndex,
		UploadedChunks:  progress.UploadedChunks,
		TotalChunks:     progress.TotalChunks,
		ProgressPercent: progress.ProgressPercent,
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	d, err := s.uploads.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.sendServiceError(c, err)
	}

	return c.JSON(transferapi.StatusResponse{
		SessionID:       d.SessionID,
		Status:          string(d.Status),
		FileName:        d.FileName,
		UploadedChunks:  d.UploadedChunks,
		TotalChunks:     d.TotalChunks,
		ProgressPercent: d.ProgressPercent,
		ArtifactRef:     d.ArtifactRef,
		Error:           d.Error,
	})
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.uploads.CancelUpload(c.UserContext(), id); err != nil {
		return s.sendServiceError(c, err)
	}
	return c.JSON(transferapi.MessageResponse{Message: "Upload " + id + " cancelled"})
}
