package middleware

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// requestIDKey is the locals key under which the request id is stored.
const requestIDKey = "request_id"

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(requestID, action, resource, details, ip, userAgent string) error
}

// RequestID returns the id assigned to the current request.
func RequestID(c fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// AuditMiddleware assigns each request an id and logs it to the audit
// trail after the handler runs.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		requestID := uuid.NewString()
		c.Locals(requestIDKey, requestID)
		c.Set("X-Request-ID", requestID)

		// Capture request data BEFORE handler execution (Fiber reuses
		// context objects).
		method := c.Method()
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get("User-Agent")

		err := c.Next()

		statusCode := c.Response().StatusCode()
		details := map[string]any{
			"method":      method,
			"path":        path,
			"status":      statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		detailsJSON, _ := json.Marshal(details)

		// All values are captured; safe to write in a goroutine.
		go func() {
			if writeErr := writer.WriteAudit(
				requestID,
				domain.AuditActionHTTPRequest,
				path,
				string(detailsJSON),
				ip,
				userAgent,
			); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}
