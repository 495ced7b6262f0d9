package middleware

import (
	"context"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/sirupsen/logrus"
)

// OperationLoggerExtension logs one line per GraphQL operation with its duration
// and error count.
type OperationLoggerExtension struct {
	Logger *logrus.Logger
}

var (
	_ graphql.HandlerExtension    = (*OperationLoggerExtension)(nil)
	_ graphql.ResponseInterceptor = (*OperationLoggerExtension)(nil)
)

// ExtensionName implements graphql.HandlerExtension
func (e *OperationLoggerExtension) ExtensionName() string {
	return "OperationLogger"
}

// Validate implements graphql.HandlerExtension
func (e *OperationLoggerExtension) Validate(schema graphql.ExecutableSchema) error {
	return nil
}

// InterceptResponse implements graphql.ResponseInterceptor
func (e *OperationLoggerExtension) InterceptResponse(ctx context.Context, next graphql.ResponseHandler) *graphql.Response {
	start := time.Now()
	resp := next(ctx)

	logger := e.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fields := logrus.Fields{
		"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
	}
	if graphql.HasOperationContext(ctx) {
		fields["operation"] = graphql.GetOperationContext(ctx).OperationName
	}
	if resp != nil {
		fields["errors"] = len(resp.Errors)
	}
	entry := logger.WithFields(fields)
	if resp != nil && len(resp.Errors) > 0 {
		entry.Warn("graphql operation returned errors")
	} else {
		entry.Info("graphql operation served")
	}
	return resp
}
