package graphql

import (
	"errors"

	"github.com/99designs/gqlgen/graphql"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/rpattn/changereport/internal/domain"
)

// errorCode maps engine errors to the codes the REST API uses.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrPartialResult):
		return "partial_result"
	case errors.Is(err, domain.ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, domain.ErrWindowTooLarge):
		return "window_too_large"
	case errors.Is(err, domain.ErrInvalidCursor):
		return "invalid_cursor"
	case errors.Is(err, domain.ErrInvalidScope):
		return "invalid_scope"
	case errors.Is(err, errInvalidArgument):
		return "invalid_parameter"
	case errors.Is(err, domain.ErrUnknownKind):
		return "unknown_kind"
	case domain.IsRetryable(err):
		return "store_unavailable"
	default:
		return "internal"
	}
}

// presentError logs err and turns it into a GraphQL error on field. Internal
// failures are reported without their cause.
func (r *Resolver) presentError(field graphql.CollectedField, err error) *gqlerror.Error {
	code := errorCode(err)
	entry := r.logger.WithFields(logrus.Fields{
		"field": field.Name,
		"code":  code,
		"error": err.Error(),
	})

	message := err.Error()
	switch code {
	case "internal":
		entry.Error("report query failed")
		message = "internal error"
	case "store_unavailable", "partial_result":
		entry.Error("report query failed")
	default:
		entry.Warn("report query rejected")
	}

	gqlErr := fieldError(field, message, code)
	var partial *domain.PartialResultError
	if errors.As(err, &partial) {
		gqlErr.Extensions["completedRoots"] = partial.CompletedRoots
		gqlErr.Extensions["totalRoots"] = partial.TotalRoots
	}
	return gqlErr
}

func fieldError(field graphql.CollectedField, message, code string) *gqlerror.Error {
	gqlErr := &gqlerror.Error{
		Message:    message,
		Path:       ast.Path{ast.PathName(field.Alias)},
		Extensions: map[string]any{"code": code},
	}
	if field.Position != nil {
		gqlErr.Locations = []gqlerror.Location{{Line: field.Position.Line, Column: field.Position.Column}}
	}
	return gqlErr
}
