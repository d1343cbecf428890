// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all endpoints:
// the success/error envelope, pagination metadata, and helpers for common HTTP
// patterns. Every endpoint answers with the same JSON shape so clients can
// branch on `success` and `error` without inspecting status codes first.
//
// Conventions:
//   - All error responses carry a stable machine-readable `error` code.
//   - `fail()` centralizes error logging and formatting, ensuring 5xx responses
//     are logged with request context for observability.
//   - `ok()` and `noContent()` simplify writing success responses in a
//     consistent shape across handlers.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{ "success": false, "error": "not_found", "message": "conversation not found" }
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "success": true, "data": { "id": "abc123" } }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mdmonauwarulislam/jobpulse/internal/http/middleware"
)

// Response is the envelope returned by every endpoint.
//
// Fields:
//   - Success: true for 2xx outcomes, false otherwise.
//   - Data: the operation result; omitted on errors and empty results.
//   - Error: stable machine-readable code (see errors.go constants).
//   - Message: human-readable text, safe to show to users.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// pageMeta computes pagination metadata from the request page, page size, and
// filtered total.
func pageMeta(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1 && total > 0,
	}
}

// fail aborts the request with a structured error envelope and logs
// server-side errors.
//
// Server errors (>=500) are logged using the request-scoped logger from
// middleware.
func fail(c *gin.Context, status int, code, msg string) {
	resp := Response{
		Success: false,
		Error:   code,
		Message: msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error envelopes without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failWith is like fail but attaches a data payload to the error envelope.
// Used when the error itself points at an existing resource (e.g., the id of
// the conversation that already exists).
func failWith(c *gin.Context, status int, code, msg string, data any) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   code,
		Message: msg,
		Data:    data,
	})
}

// ok writes a success envelope with the given HTTP status code.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

// okMsg writes a success envelope carrying only a message.
func okMsg(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: true, Message: msg})
}

// noContent writes an HTTP 204 No Content response.
//
// Used when the operation succeeds but there is no response body.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
