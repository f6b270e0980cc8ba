package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberRecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	qgen "github.com/Paranoid-AF/qgen"
	"github.com/Paranoid-AF/qgen/generate"
)

const welcomeMessage = "Welcome to the interview question generation API with RAG"

// QuestionGenerator generates interview questions for a job description.
type QuestionGenerator interface {
	Generate(ctx context.Context, description string, count int) ([]string, error)
	Close()
}

// Server exposes a QuestionGenerator over HTTP.
type Server struct {
	app    *fiber.App
	engine QuestionGenerator
}

// NewServer creates an HTTP server backed by engine.
func NewServer(engine QuestionGenerator) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "qgend",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(accessLog())
	app.Use(fiberRecover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	s := &Server{app: app, engine: engine}
	app.Get("/", s.handleRoot)
	app.Post("/generate-questions", s.handleGenerate)
	return s
}

// Listen serves HTTP on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown waits for in-flight requests, then closes the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	s.engine.Close()
	return err
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(qgen.RootResponse{Message: welcomeMessage})
}

func (s *Server) handleGenerate(c *fiber.Ctx) error {
	var req qgen.Request
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("invalid request body", "request_id", requestID(c), "error", err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(qgen.ErrorResponse{
			Detail: "request body must be a JSON object with a description",
			Code:   qgen.CodeInvalidRequest,
		})
	}

	slog.Info("generate request",
		"request_id", requestID(c),
		"description", truncate(req.Description, 100),
		"num_questions", req.Count(),
	)

	questions, err := s.engine.Generate(c.UserContext(), req.Description, req.Count())
	if err != nil {
		if errors.Is(err, generate.ErrInvalidInput) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(qgen.ErrorResponse{
				Detail: err.Error(),
				Code:   qgen.CodeInvalidRequest,
			})
		}
		slog.Error("generation failed", "request_id", requestID(c), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(qgen.ErrorResponse{
			Detail: err.Error(),
			Code:   qgen.CodeGenerationError,
		})
	}

	if questions == nil {
		questions = []string{}
	}
	slog.Info("generated questions", "request_id", requestID(c), "count", len(questions))
	return c.JSON(qgen.Response{Questions: questions})
}

// errorHandler renders errors that escaped a handler (unknown routes, panics)
// as ErrorResponse bodies.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	detail := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		detail = fe.Message
	}

	resp := qgen.ErrorResponse{Detail: detail, Code: qgen.CodeInternalError}
	switch {
	case code == fiber.StatusNotFound:
		resp.Code = qgen.CodeNotFound
	case code < fiber.StatusInternalServerError:
		resp.Code = qgen.CodeInvalidRequest
	default:
		slog.Error("unhandled error", "request_id", requestID(c), "error", err)
	}
	return c.Status(code).JSON(resp)
}

const localRequestID = "request_id"

// accessLog assigns every request an ID, echoes it in X-Request-ID and logs
// the request once it completes.
func accessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Locals(localRequestID, id)
		c.Set(fiber.HeaderXRequestID, id)

		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		attrs := []any{
			"request_id", id,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", time.Since(start),
		}
		if status >= fiber.StatusInternalServerError {
			slog.Warn("request", attrs...)
		} else {
			slog.Debug("request", attrs...)
		}
		return err
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
