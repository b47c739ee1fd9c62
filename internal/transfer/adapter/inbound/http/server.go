package http_handler

import (
	"context"
	"net"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/config"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/port"
	"github.com/anthanhphan/go-resumable-transfer/pkg/transferapi"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// bodySlack leaves room above the largest chunk for request framing.
const bodySlack = 64 * 1024

type Server struct {
	app      *fiber.App
	cfg      *config.Config
	uploads  port.UploadService
	download port.DownloadService
}

func NewServer(cfg *config.Config, uploads port.UploadService, download port.DownloadService) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.Upload.MaxChunkSize) + bodySlack,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	s := &Server{
		app:      app,
		cfg:      cfg,
		uploads:  uploads,
		download: download,
	}

	// Routes
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group(transferapi.BasePath)
	api.Post("/uploads", s.handleInit)
	api.Put("/uploads/:id/chunks/:index", s.handleChunk)
	api.Get("/uploads/:id", s.handleStatus)
	api.Delete("/uploads/:id", s.handleCancel)

	// Get also registers HEAD.
	api.Get("/files/:ref", s.handleDownload)
}

func (s *Server) Start() error {
	return s.app.Listen(s.cfg.Server.Addr)
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
