package graphql

import (
	"bytes"
	"context"
	_ "embed"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

// executableSchema executes validated operations against the resolver. The
// schema is small and read-only, so fields are dispatched directly on the
// collected selection sets.
type executableSchema struct {
	resolver *Resolver
}

// NewExecutableSchema returns the schema served by the gqlgen handler.
func NewExecutableSchema(resolver *Resolver) graphql.ExecutableSchema {
	return &executableSchema{resolver: resolver}
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Complexity(ctx context.Context, typeName, field string, childComplexity int, args map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	if opCtx.Operation.Operation != ast.Query {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}
	return graphql.OneShot(e.query(ctx, opCtx))
}

// query resolves the root fields in order. Every root field is non-null, so a
// failing field nulls the whole data object.
func (e *executableSchema) query(ctx context.Context, opCtx *graphql.OperationContext) *graphql.Response {
	fields := graphql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{"Query"})
	out := graphql.NewFieldSet(fields)
	var errs gqlerror.List

	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("Query")
		case "changeReport":
			report, err := e.resolver.ChangeReport(ctx, field.ArgumentMap(opCtx.Variables))
			if err != nil {
				errs = append(errs, e.resolver.presentError(field, err))
				out.Values[i] = graphql.Null
				continue
			}
			out.Values[i] = marshalReport(opCtx, field.Selections, report)
		case "changeCounters":
			counters, err := e.resolver.ChangeCounters(ctx, field.ArgumentMap(opCtx.Variables))
			if err != nil {
				errs = append(errs, e.resolver.presentError(field, err))
				out.Values[i] = graphql.Null
				continue
			}
			out.Values[i] = marshalCounters(opCtx, field.Selections, counters)
		default:
			errs = append(errs, fieldError(field, "field "+field.Name+" is not supported", "unsupported_field"))
			out.Values[i] = graphql.Null
		}
	}

	if len(errs) > 0 {
		return &graphql.Response{Errors: errs}
	}
	var buf bytes.Buffer
	out.MarshalGQL(&buf)
	return &graphql.Response{Data: buf.Bytes()}
}
