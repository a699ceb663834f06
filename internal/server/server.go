// Package server exposes the Acefone call-ended webhook over HTTP.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/udipth01/acefone/internal/config"
	"github.com/udipth01/acefone/internal/logger"
	"github.com/udipth01/acefone/internal/pipeline"
	"github.com/udipth01/acefone/internal/telephony"
	"github.com/udipth01/acefone/internal/types"
)

// Runner is the pipeline entry point the webhook hands events to.
type Runner interface {
	Run(ctx context.Context, ev types.CallEvent) (pipeline.Result, error)
}

type Server struct {
	app    *fiber.App
	runner Runner
	secret string
	log    *logger.Logger
	addr   string
}

func New(cfg config.Config, runner Runner, log *logger.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:    app,
		runner: runner,
		secret: cfg.SharedSecret,
		log:    log,
		addr:   cfg.ListenAddr,
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Post("/acefone/call-ended", s.handleCallEnded)

	return s
}

func (s *Server) handleCallEnded(c *fiber.Ctx) error {
	log := s.log.WithRequest(c)

	// Shared-secret gate runs before anything else; a mismatch must not
	// trigger a single remote call.
	if s.secret != "" && c.Get("X-Secret") != s.secret {
		log.Warn("webhook secret mismatch")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "unauthorized",
		})
	}

	var ev types.CallEvent
	if err := c.BodyParser(&ev); err != nil {
		log.WithField("error", err.Error()).Warn("invalid webhook payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid payload",
		})
	}
	if ev.CallID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "call_id is required",
		})
	}

	log = log.WithField("call_id", ev.CallID)
	log.Info("call-ended event received")

	res, err := s.runner.Run(c.Context(), ev)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"status": string(res.State),
			"kind":   pipeline.Kind(err),
			"error":  err.Error(),
		})
	}
	return c.JSON(res)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, telephony.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, telephony.ErrAuthentication),
		errors.Is(err, pipeline.ErrResolution),
		errors.Is(err, pipeline.ErrPublish):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen() error {
	s.log.WithField("addr", s.addr).Info("listening")
	return s.app.Listen(s.addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
