package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const HeaderCorrelationID = "X-Correlation-ID"

// Correlation echoes the caller's correlation id or mints a UUIDv4 when
// the header is absent. The id rides on the gin context, the response
// header, and the active trace span so logs, clients, and traces can
// line up requests.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderCorrelationID))
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("correlation_id", id)
		c.Writer.Header().Set(HeaderCorrelationID, id)
		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			span.SetAttributes(attribute.String("correlation_id", id))
		}
		c.Next()
	}
}

// CorrelationID reads the id attached by Correlation; empty when the
// middleware did not run.
func CorrelationID(c *gin.Context) string {
	return c.GetString("correlation_id")
}
