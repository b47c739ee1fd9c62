package http_handler

import (
	"fmt"
	"mime"
	"strconv"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/domain"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleDownload(c *fiber.Ctx) error {
	ref := c.Params("ref")

	if c.Method() == fiber.MethodHead {
		artifact, err := s.download.StatArtifact(c.UserContext(), ref)
		if err != nil {
			return s.sendServiceError(c, err)
		}
		s.setArtifactHeaders(c, artifact)
		c.Response().Header.SetContentLength(int(artifact.Size))
		return nil
	}

	stream, err := s.download.OpenDownload(c.UserContext(), ref, c.Get(fiber.HeaderRange))
	if err != nil {
		return s.sendServiceError(c, err)
	}

	s.setArtifactHeaders(c, &stream.Artifact)
	status := fiber.StatusOK
	if stream.Partial {
		status = fiber.StatusPartialContent
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", stream.Start, stream.End, stream.Artifact.Size))
	}

	// The response owns the body from here and closes it after writing,
	// including when the client goes away mid-stream.
	c.Status(status)
	return c.SendStream(stream.Body, int(stream.Length))
}

func (s *Server) setArtifactHeaders(c *fiber.Ctx, artifact *domain.Artifact) {
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderAcceptRanges, "bytes")
	c.Set(fiber.HeaderContentDisposition, contentDisposition(artifact.FileName))
	c.Set("X-Artifact-Size", strconv.FormatInt(artifact.Size, 10))
}

// contentDisposition renders an attachment header, falling back to a plain
// quoted name when the filename cannot be encoded.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return `attachment; filename="download"`
}
