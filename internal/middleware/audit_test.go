package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arturoeanton/commit-tracker/internal/domain"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditRecord struct {
	requestID string
	action    string
	resource  string
	details   string
}

type captureWriter struct {
	records chan auditRecord
}

func (w *captureWriter) WriteAudit(requestID, action, resource, details, _, _ string) error {
	w.records <- auditRecord{requestID: requestID, action: action, resource: resource, details: details}
	return nil
}

func TestAuditMiddleware(t *testing.T) {
	writer := &captureWriter{records: make(chan auditRecord, 1)}

	app := fiber.New()
	app.Use(AuditMiddleware(writer))
	app.Get("/api/commits", func(c fiber.Ctx) error {
		assert.NotEmpty(t, RequestID(c))
		return c.JSON(fiber.Map{"ok": true})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/commits", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	// The audit row is written asynchronously after the response.
	select {
	case rec := <-writer.records:
		assert.Equal(t, resp.Header.Get("X-Request-ID"), rec.requestID)
		assert.Equal(t, domain.AuditActionHTTPRequest, rec.action)
		assert.Equal(t, "/api/commits", rec.resource)

		var details map[string]any
		require.NoError(t, json.Unmarshal([]byte(rec.details), &details))
		assert.Equal(t, "GET", details["method"])
		assert.Equal(t, float64(http.StatusOK), details["status"])
	case <-time.After(2 * time.Second):
		t.Fatal("audit record was never written")
	}
}
