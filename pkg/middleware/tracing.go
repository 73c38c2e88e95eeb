package middleware

import (
	"ai-bot-network/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request and exposes its trace id in the
// X-Trace-ID header and the request logger. Downstream spans (dispatch,
// generation) become its children through the request context.
func Tracing(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethodKey.String(c.Request.Method),
				semconv.HTTPRouteKey.String(route),
				attribute.String("request.id", c.GetString("requestID")),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			c.Header("X-Trace-ID", traceID)
			c.Set("traceID", traceID)
			reqLogger := logger.FromContext(c).With("trace_id", traceID)
			c.Set("logger", reqLogger)
			ctx = logger.NewContext(ctx, reqLogger)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
		if id := OwnerID(c); id != "" {
			span.SetAttributes(attribute.String("user.id", id))
		}
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
