package webservices

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/semaphore"
	"github.com/jamesrr39/tablescan/tablescan"
	"github.com/jamesrr39/tablescan/tablescan/predicate"
	"github.com/jamesrr39/tablescan/tablescandal"
	"github.com/jamesrr39/tablescan/tablescandal/queryengine"
	"github.com/pkg/profile"
)

const (
	DefaultRowLimit     = 1000
	DefaultMaxConcScans = 4
)

type QueryService struct {
	logger        *logpkg.Logger
	tableSet      *tablescandal.TableSet
	sema          *semaphore.Semaphore
	shouldProfile bool
	chi.Router
}

func NewQueryService(logger *logpkg.Logger, tableSet *tablescandal.TableSet, maxConcurrentScans uint, shouldProfile bool) *QueryService {
	qs := &QueryService{logger, tableSet, semaphore.NewSemaphore(maxConcurrentScans), shouldProfile, chi.NewRouter()}

	qs.Get("/{tableName}/query", qs.handleGetQuery)

	return qs
}

type queryResponseType struct {
	Query     string                  `json:"query"`
	Strategy  queryengine.Strategy    `json:"strategy"`
	Columns   []tablescan.Column      `json:"columns"`
	Rows      []queryengine.ResultRow `json:"rows"`
	RowCount  int64                   `json:"rowCount"`
	Truncated bool                    `json:"truncated"`
}

type queryParams struct {
	query    *queryengine.Query
	strategy queryengine.Strategy
	limit    int64
	// countOnly returns the number of matching rows, and no rows
	countOnly bool
}

func parseQueryParams(r *http.Request) (*queryParams, errorsx.Error) {
	urlQuery := r.URL.Query()

	params := &queryParams{
		query:     new(queryengine.Query),
		strategy:  queryengine.StrategyWhere,
		limit:     DefaultRowLimit,
		countOnly: urlQuery.Get("countOnly") == "true",
	}

	whereStr := urlQuery.Get("where")
	if whereStr != "" {
		where, err := predicate.Parse(whereStr)
		if err != nil {
			return nil, err
		}
		params.query.Where = where
	}

	selectStr := urlQuery.Get("select")
	if selectStr != "" {
		for _, columnName := range strings.Split(selectStr, ",") {
			params.query.Select = append(params.query.Select, strings.TrimSpace(columnName))
		}
	}

	strategyStr := urlQuery.Get("strategy")
	if strategyStr != "" {
		strategy, err := queryengine.ParseStrategy(strategyStr)
		if err != nil {
			return nil, err
		}
		params.strategy = strategy
	}

	limitStr := urlQuery.Get("limit")
	if limitStr != "" {
		limit, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || limit < 0 {
			return nil, errorsx.Errorf("invalid limit: %q", limitStr)
		}
		params.limit = limit
	}

	return params, nil
}

func (qs *QueryService) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	if qs.shouldProfile {
		defer profile.Start().Stop()
	}

	tableName := chi.URLParam(r, "tableName")

	params, err := parseQueryParams(r)
	if err != nil {
		errorsx.HTTPError(w, qs.logger, err, http.StatusBadRequest)
		return
	}

	qs.sema.Add()
	defer qs.sema.Done()

	handle, err := qs.tableSet.Open(qs.logger, tableName)
	if err != nil {
		errorsx.HTTPError(w, qs.logger, err, statusCodeForErr(err))
		return
	}
	defer handle.Close()

	qs.logger.Info("query on %q (%s): %s", tableName, params.strategy, params.query)

	results, err := params.query.Run(r.Context(), handle, params.strategy)
	if err != nil {
		errorsx.HTTPError(w, qs.logger, err, statusCodeForErr(err))
		return
	}
	defer results.Close()

	response := queryResponseType{
		Query:    params.query.String(),
		Strategy: params.strategy,
		Columns:  results.Schema().Columns(),
		Rows:     []queryengine.ResultRow{},
	}

	for results.Next() {
		response.RowCount++
		if params.countOnly {
			continue
		}
		if int64(len(response.Rows)) >= params.limit {
			// the rest are counted, but not returned
			response.Truncated = true
			continue
		}
		response.Rows = append(response.Rows, results.Row())
	}

	err = results.Err()
	if err != nil {
		if errorsx.Cause(err) == context.Canceled {
			// request cancelled. Do nothing
			return
		}
		errorsx.HTTPError(w, qs.logger, err, statusCodeForErr(err))
		return
	}

	render.JSON(w, r, response)
}

func statusCodeForErr(err errorsx.Error) int {
	switch errorsx.Cause(err) {
	case errorsx.ObjectNotFound:
		return http.StatusNotFound
	case tablescan.ErrUnknownColumn, tablescan.ErrInvalidPredicate:
		return http.StatusBadRequest
	case tablescan.ErrStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
