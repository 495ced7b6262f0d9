package graphql

import (
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/rpattn/changereport/internal/domain"
)

func marshalReport(opCtx *graphql.OperationContext, sel ast.SelectionSet, report domain.Report) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"ChangeReport"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("ChangeReport")
		case "kind":
			out.Values[i] = graphql.MarshalString(string(report.Kind))
		case "window":
			out.Values[i] = marshalWindow(opCtx, field.Selections, report.Window)
		case "roots":
			roots := make(graphql.Array, len(report.Roots))
			for j, root := range report.Roots {
				roots[j] = marshalNode(opCtx, field.Selections, root)
			}
			out.Values[i] = roots
		case "unresolved":
			unresolved := make(graphql.Array, len(report.Unresolved))
			for j, entity := range report.Unresolved {
				unresolved[j] = marshalUnresolved(opCtx, field.Selections, entity)
			}
			out.Values[i] = unresolved
		case "nextCursor":
			if report.NextCursor == "" {
				out.Values[i] = graphql.Null
			} else {
				out.Values[i] = graphql.MarshalString(report.NextCursor)
			}
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func marshalNode(opCtx *graphql.OperationContext, sel ast.SelectionSet, node domain.ReportNode) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"ReportNode"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("ReportNode")
		case "entityId":
			out.Values[i] = graphql.MarshalID(node.EntityID.String())
		case "kind":
			out.Values[i] = graphql.MarshalString(string(node.Kind))
		case "action":
			out.Values[i] = graphql.MarshalString(strings.ToUpper(string(node.Action)))
		case "direction":
			if node.Direction == domain.DirectionNone {
				out.Values[i] = graphql.Null
			} else {
				out.Values[i] = graphql.MarshalString(strings.ToUpper(string(node.Direction)))
			}
		case "parentId":
			out.Values[i] = marshalOptionalID(node.ParentID)
		case "previousParentId":
			out.Values[i] = marshalOptionalID(node.PreviousParentID)
		case "fields":
			out.Values[i] = graphql.MarshalMap(node.Fields)
		case "changedFields":
			changed := make(graphql.Array, len(node.ChangedFields))
			for j, name := range node.ChangedFields {
				changed[j] = graphql.MarshalString(name)
			}
			out.Values[i] = changed
		case "children":
			children := make(graphql.Array, len(node.Children))
			for j, child := range node.Children {
				children[j] = marshalNode(opCtx, field.Selections, child)
			}
			out.Values[i] = children
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func marshalUnresolved(opCtx *graphql.OperationContext, sel ast.SelectionSet, entity domain.UnresolvedEntity) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"UnresolvedEntity"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("UnresolvedEntity")
		case "entityId":
			out.Values[i] = graphql.MarshalID(entity.EntityID.String())
		case "kind":
			out.Values[i] = graphql.MarshalString(string(entity.Kind))
		case "parentId":
			out.Values[i] = marshalOptionalID(entity.ParentID)
		case "reason":
			out.Values[i] = graphql.MarshalString(entity.Reason)
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func marshalCounters(opCtx *graphql.OperationContext, sel ast.SelectionSet, result CountersResult) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"ChangeCounters"})
	out := graphql.NewFieldSet(fields)
	counts := result.Counts
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("ChangeCounters")
		case "kind":
			out.Values[i] = graphql.MarshalString(string(result.Kind))
		case "window":
			out.Values[i] = marshalWindow(opCtx, field.Selections, result.Window)
		case "parentKind":
			if result.Parent == nil {
				out.Values[i] = graphql.Null
			} else {
				out.Values[i] = graphql.MarshalString(string(result.Parent.Kind))
			}
		case "parentId":
			if result.Parent == nil {
				out.Values[i] = graphql.Null
			} else {
				out.Values[i] = graphql.MarshalID(result.Parent.ID.String())
			}
		case "created":
			out.Values[i] = graphql.MarshalInt(counts.Created)
		case "modified":
			out.Values[i] = graphql.MarshalInt(counts.Modified)
		case "deleted":
			out.Values[i] = graphql.MarshalInt(counts.Deleted)
		case "moved":
			out.Values[i] = graphql.MarshalInt(counts.Moved)
		case "unchanged":
			out.Values[i] = graphql.MarshalInt(counts.Unchanged)
		case "net":
			out.Values[i] = graphql.MarshalInt(counts.Net())
		case "total":
			out.Values[i] = graphql.MarshalInt(counts.Total())
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func marshalWindow(opCtx *graphql.OperationContext, sel ast.SelectionSet, window domain.ChangeWindow) graphql.Marshaler {
	fields := graphql.CollectFields(opCtx, sel, []string{"ChangeWindow"})
	out := graphql.NewFieldSet(fields)
	for i, field := range fields {
		switch field.Name {
		case "__typename":
			out.Values[i] = graphql.MarshalString("ChangeWindow")
		case "since":
			out.Values[i] = graphql.MarshalTime(window.Since)
		case "until":
			out.Values[i] = graphql.MarshalTime(window.Until)
		default:
			out.Values[i] = graphql.Null
		}
	}
	return out
}

func marshalOptionalID(id *uuid.UUID) graphql.Marshaler {
	if id == nil {
		return graphql.Null
	}
	return graphql.MarshalID(id.String())
}
