package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/roach88/textflow/internal/engine"
	"github.com/roach88/textflow/internal/graph"
)

// requestError rejects a request before it reaches the engine.
type requestError struct {
	Status  int
	Code    string
	Message string
}

func (e *requestError) Error() string {
	return e.Message
}

func badRequest(format string, args ...any) error {
	return &requestError{Status: fiber.StatusBadRequest, Code: "BAD_REQUEST", Message: fmt.Sprintf(format, args...)}
}

func notFound(code, format string, args ...any) error {
	return &requestError{Status: fiber.StatusNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

var errNoJournal = &requestError{Status: fiber.StatusNotFound, Code: "NO_JOURNAL", Message: "no journal is attached"}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// classify maps an error to a status and a code.
func classify(err error) (int, string) {
	var re *requestError
	if errors.As(err, &re) {
		return re.Status, re.Code
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusBadRequest:
			return fe.Code, "BAD_REQUEST"
		case fiber.StatusNotFound:
			return fe.Code, "NOT_FOUND"
		case fiber.StatusMethodNotAllowed:
			return fe.Code, "METHOD_NOT_ALLOWED"
		default:
			return fe.Code, "HTTP_ERROR"
		}
	}

	if errors.Is(err, engine.ErrReentrantPass) {
		return fiber.StatusConflict, "REENTRANT_PASS"
	}

	switch code := graph.Code(err); code {
	case graph.ErrCodeNodeNotFound, graph.ErrCodeEdgeNotFound:
		return fiber.StatusNotFound, string(code)
	case graph.ErrCodePortOccupied:
		return fiber.StatusConflict, string(code)
	case graph.ErrCodeInvalidEdge, graph.ErrCodeUnknownOperator:
		return fiber.StatusUnprocessableEntity, string(code)
	}
	return fiber.StatusInternalServerError, "INTERNAL"
}

// handleError is the app's error handler.
func (s *Server) handleError(c fiber.Ctx, err error) error {
	status, code := classify(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	} else {
		s.logger.Debug("request rejected", "method", c.Method(), "path", c.Path(), "code", code, "error", err)
	}
	return c.Status(status).JSON(errorBody{Code: code, Error: err.Error()})
}
