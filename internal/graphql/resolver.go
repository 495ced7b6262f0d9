package graphql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/reporting"
)

var errInvalidArgument = errors.New("invalid argument")

// ReportService is the engine surface the resolvers need.
type ReportService interface {
	Report(ctx context.Context, req reporting.ReportRequest) (domain.Report, error)
	Count(ctx context.Context, req reporting.CountRequest) (domain.Counters, error)
}

// Resolver resolves the report queries.
type Resolver struct {
	service       ReportService
	logger        *logrus.Logger
	maxWindowSpan time.Duration
}

func NewResolver(service ReportService, logger *logrus.Logger, maxWindowSpan time.Duration) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{service: service, logger: logger, maxWindowSpan: maxWindowSpan}
}

// CountersResult is a counters answer together with the scope it was computed for.
type CountersResult struct {
	Kind   domain.EntityKind
	Window domain.ChangeWindow
	Parent *domain.ParentRef
	Counts domain.Counters
}

// ChangeReport resolves Query.changeReport.
func (r *Resolver) ChangeReport(ctx context.Context, args map[string]any) (domain.Report, error) {
	kind, window, err := r.kindAndWindow(args)
	if err != nil {
		return domain.Report{}, err
	}
	req := reporting.ReportRequest{Kind: kind, Window: window}

	if req.RootID, err = idArg(args, "rootId"); err != nil {
		return domain.Report{}, err
	}
	if req.Cursor, _, err = stringArg(args, "cursor"); err != nil {
		return domain.Report{}, err
	}
	if raw, ok := args["pageSize"]; ok && raw != nil {
		size, err := graphql.UnmarshalInt(raw)
		if err != nil || size < 1 {
			return domain.Report{}, fmt.Errorf("%w: pageSize must be a positive integer", errInvalidArgument)
		}
		req.PageSize = size
	}

	return r.service.Report(ctx, req)
}

// ChangeCounters resolves Query.changeCounters.
func (r *Resolver) ChangeCounters(ctx context.Context, args map[string]any) (CountersResult, error) {
	kind, window, err := r.kindAndWindow(args)
	if err != nil {
		return CountersResult{}, err
	}
	req := reporting.CountRequest{Kind: kind, Window: window}

	parentKind, hasKind, err := stringArg(args, "parentKind")
	if err != nil {
		return CountersResult{}, err
	}
	parentID, err := idArg(args, "parentId")
	if err != nil {
		return CountersResult{}, err
	}
	switch {
	case !hasKind && parentID == nil:
	case !hasKind || parentID == nil:
		return CountersResult{}, fmt.Errorf("%w: parentKind and parentId must be given together", errInvalidArgument)
	default:
		req.Parent = &domain.ParentRef{Kind: domain.EntityKind(parentKind), ID: *parentID}
	}

	counts, err := r.service.Count(ctx, req)
	if err != nil {
		return CountersResult{}, err
	}
	return CountersResult{Kind: kind, Window: window, Parent: req.Parent, Counts: counts}, nil
}

func (r *Resolver) kindAndWindow(args map[string]any) (domain.EntityKind, domain.ChangeWindow, error) {
	kind, _, err := stringArg(args, "kind")
	if err != nil {
		return "", domain.ChangeWindow{}, err
	}
	gt, _, err := stringArg(args, "datetimeGt")
	if err != nil {
		return "", domain.ChangeWindow{}, err
	}
	lte, _, err := stringArg(args, "datetimeLte")
	if err != nil {
		return "", domain.ChangeWindow{}, err
	}
	window, err := domain.ParseChangeWindow(gt, lte, r.maxWindowSpan)
	if err != nil {
		return "", domain.ChangeWindow{}, err
	}
	return domain.EntityKind(kind), window, nil
}

func stringArg(args map[string]any, name string) (string, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	value, err := graphql.UnmarshalString(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %s: %v", errInvalidArgument, name, err)
	}
	return value, true, nil
}

func idArg(args map[string]any, name string) (*uuid.UUID, error) {
	raw, ok, err := stringArg(args, name)
	if err != nil || !ok {
		return nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errInvalidArgument, name, err)
	}
	return &id, nil
}
