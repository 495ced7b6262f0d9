package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/changereport/internal/domain"
	"github.com/rpattn/changereport/internal/reporting"
)

type stubService struct {
	reportReq reporting.ReportRequest
	countReq  reporting.CountRequest
	report    domain.Report
	counts    domain.Counters
	err       error
}

func (s *stubService) Report(_ context.Context, req reporting.ReportRequest) (domain.Report, error) {
	s.reportReq = req
	return s.report, s.err
}

func (s *stubService) Count(_ context.Context, req reporting.CountRequest) (domain.Counters, error) {
	s.countReq = req
	return s.counts, s.err
}

type gqlError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path"`
	Extensions map[string]any `json:"extensions"`
}

type gqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []gqlError     `json:"errors"`
}

func execute(t *testing.T, service ReportService, query string, variables map[string]any) (gqlResponse, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	srv := NewServer(NewResolver(service, logger, 0), logger)

	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp, hook
}

const reportQuery = `query Report($page: Int, $root: ID) {
  report: changeReport(kind: "organization", datetimeGt: "2024-01-01T00:00:00Z", datetimeLte: "2024-01-02T00:00:00Z", pageSize: $page, rootId: $root) {
    kind
    window { since until }
    roots {
      entityId
      action
      direction
      fields
      children { entityId action direction previousParentId children { entityId } }
    }
    unresolved { entityId reason }
    nextCursor
  }
}`

func TestChangeReportQuery(t *testing.T) {
	org, unit, oldOrg := uuid.New(), uuid.New(), uuid.New()
	service := &stubService{report: domain.Report{
		Kind: "organization",
		Window: domain.ChangeWindow{
			Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Until: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		Roots: []domain.ReportNode{{
			EntityID: org,
			Kind:     "organization",
			Action:   domain.ActionUnchanged,
			Fields:   map[string]any{"name": "North"},
			Children: []domain.ReportNode{{
				EntityID:         unit,
				Kind:             "unit",
				Action:           domain.ActionMoved,
				Direction:        domain.DirectionIn,
				PreviousParentID: &oldOrg,
				Children:         []domain.ReportNode{},
			}},
		}},
		NextCursor: org.String(),
	}}

	resp, hook := execute(t, service, reportQuery, map[string]any{"page": 25, "root": org.String()})
	require.Empty(t, resp.Errors)

	report := resp.Data["report"].(map[string]any)
	assert.Equal(t, "organization", report["kind"])
	assert.Equal(t, org.String(), report["nextCursor"])
	assert.Empty(t, report["unresolved"])
	window := report["window"].(map[string]any)
	assert.Equal(t, "2024-01-01T00:00:00Z", window["since"])

	roots := report["roots"].([]any)
	require.Len(t, roots, 1)
	root := roots[0].(map[string]any)
	assert.Equal(t, org.String(), root["entityId"])
	assert.Equal(t, "UNCHANGED", root["action"])
	assert.Nil(t, root["direction"])
	assert.Equal(t, map[string]any{"name": "North"}, root["fields"])

	children := root["children"].([]any)
	require.Len(t, children, 1)
	child := children[0].(map[string]any)
	assert.Equal(t, "MOVED", child["action"])
	assert.Equal(t, "IN", child["direction"])
	assert.Equal(t, oldOrg.String(), child["previousParentId"])
	assert.Empty(t, child["children"])

	assert.Equal(t, domain.EntityKind("organization"), service.reportReq.Kind)
	assert.Equal(t, 25, service.reportReq.PageSize)
	require.NotNil(t, service.reportReq.RootID)
	assert.Equal(t, org, *service.reportReq.RootID)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Report", entry.Data["operation"])
	assert.Equal(t, 0, entry.Data["errors"])
}

func TestChangeReportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "unknown kind", err: fmt.Errorf("%w: invoice", domain.ErrUnknownKind), code: "unknown_kind"},
		{name: "store unavailable", err: domain.StoreError("query", errors.New("connection refused")), code: "store_unavailable"},
		{name: "unexpected", err: errors.New("boom"), code: "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := execute(t, &stubService{err: tt.err}, reportQuery, nil)
			assert.Nil(t, resp.Data)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, tt.code, resp.Errors[0].Extensions["code"])
			assert.Equal(t, []any{"report"}, resp.Errors[0].Path)
		})
	}

	t.Run("internal errors hide their cause", func(t *testing.T) {
		resp, hook := execute(t, &stubService{err: errors.New("pq: secret detail")}, reportQuery, nil)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "internal error", resp.Errors[0].Message)

		var logged bool
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.ErrorLevel && entry.Data["error"] == "pq: secret detail" {
				logged = true
			}
		}
		assert.True(t, logged)
	})

	t.Run("partial result carries progress", func(t *testing.T) {
		err := &domain.PartialResultError{CompletedRoots: 2, TotalRoots: 5, Err: context.DeadlineExceeded}
		resp, _ := execute(t, &stubService{err: err}, reportQuery, nil)
		require.Len(t, resp.Errors, 1)
		ext := resp.Errors[0].Extensions
		assert.Equal(t, "partial_result", ext["code"])
		assert.Equal(t, float64(2), ext["completedRoots"])
		assert.Equal(t, float64(5), ext["totalRoots"])
	})

	t.Run("malformed window never reaches the engine", func(t *testing.T) {
		service := &stubService{}
		resp, _ := execute(t, service, `{ changeReport(kind: "unit", datetimeGt: "yesterday", datetimeLte: "2024-01-02T00:00:00Z") { kind } }`, nil)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "invalid_window", resp.Errors[0].Extensions["code"])
		assert.Empty(t, service.reportReq.Kind)
	})

	t.Run("bad page size", func(t *testing.T) {
		resp, _ := execute(t, &stubService{}, reportQuery, map[string]any{"page": 0})
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "invalid_parameter", resp.Errors[0].Extensions["code"])
	})
}

func TestChangeCountersQuery(t *testing.T) {
	unit := uuid.New()
	service := &stubService{counts: domain.Counters{Created: 3, Deleted: 1, Modified: 2}}

	query := `query Counters($parent: ID) {
  changeCounters(kind: "placement", datetimeGt: "2024-01-01T00:00:00Z", datetimeLte: "2024-01-02T00:00:00Z", parentKind: "unit", parentId: $parent) {
    kind parentKind parentId created deleted net total
  }
}`
	resp, _ := execute(t, service, query, map[string]any{"parent": unit.String()})
	require.Empty(t, resp.Errors)

	counters := resp.Data["changeCounters"].(map[string]any)
	assert.Equal(t, "placement", counters["kind"])
	assert.Equal(t, "unit", counters["parentKind"])
	assert.Equal(t, unit.String(), counters["parentId"])
	assert.Equal(t, float64(3), counters["created"])
	assert.Equal(t, float64(2), counters["net"])
	assert.Equal(t, float64(6), counters["total"])

	require.NotNil(t, service.countReq.Parent)
	assert.Equal(t, domain.ParentRef{Kind: "unit", ID: unit}, *service.countReq.Parent)

	t.Run("parent id needs a parent kind", func(t *testing.T) {
		resp, _ := execute(t, &stubService{}, fmt.Sprintf(`{ changeCounters(kind: "placement", datetimeGt: "2024-01-01T00:00:00Z", datetimeLte: "2024-01-02T00:00:00Z", parentId: "%s") { total } }`, unit), nil)
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "invalid_parameter", resp.Errors[0].Extensions["code"])
	})

	t.Run("ancestor scope is rejected", func(t *testing.T) {
		err := fmt.Errorf("%w: organization is not a direct parent of placement", domain.ErrInvalidScope)
		resp, _ := execute(t, &stubService{err: err}, query, map[string]any{"parent": unit.String()})
		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "invalid_scope", resp.Errors[0].Extensions["code"])
	})
}

func TestTypenameAndUnsupportedFields(t *testing.T) {
	resp, _ := execute(t, &stubService{}, `{ __typename }`, nil)
	require.Empty(t, resp.Errors)
	assert.Equal(t, "Query", resp.Data["__typename"])

	resp, _ = execute(t, &stubService{}, `{ __schema { queryType { name } } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "unsupported_field", resp.Errors[0].Extensions["code"])

	resp, _ = execute(t, &stubService{}, `{ changeReport { kind } }`, nil)
	assert.NotEmpty(t, resp.Errors, "missing required arguments fail validation")
}
