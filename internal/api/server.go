// Package api serves the indexed ledger over HTTP. Entities are read straight
// from the JSONB entities table; the indexer is the only writer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/deerfi/flashloan-indexer/internal/entity"
)

type APIServer struct {
	mux    *http.ServeMux
	db     *pgxpool.Pool
	logger zerolog.Logger
}

func NewAPIServer(db *pgxpool.Pool, logger zerolog.Logger) *APIServer {
	s := &APIServer{
		mux:    http.NewServeMux(),
		db:     db,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.registerRoutes()
	return s
}

func (s *APIServer) Start(ctx context.Context, addr string) error {
	s.logger.Info().Str("addr", addr).Msg("Starting API server")
	server := &http.Server{
		Addr:    addr,
		Handler: s.logMiddleware(s.mux),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info().Msg("Shutting down API server...")
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) registerRoutes() {
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if err := s.db.Ping(r.Context()); err != nil {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		JSON(w, code, map[string]any{
			"status":    status,
			"timestamp": time.Now().UTC(),
		}, nil)
	})
	s.mux.HandleFunc("/status", s.handleStatus)

	s.mux.HandleFunc("/pools", s.handlePools)
	s.mux.HandleFunc("/tokens", s.handleTokens)
	s.mux.HandleFunc("/loans", s.handleLoans)

	// Pool-scoped prefix for loans and day data
	s.mux.HandleFunc("/pools/", s.handlePoolPrefix)
}

func (s *APIServer) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("latency", time.Since(start)).
			Msg("http")
	})
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cursor, _ := s.getEntity(ctx, entity.KindCursor, "flash-loan")
	factory, _ := s.firstOfKind(ctx, entity.KindFactory)

	JSON(w, http.StatusOK, map[string]any{
		"cursor":  cursor,
		"factory": factory,
		"time":    time.Now().UTC(),
	}, nil)
}

func (s *APIServer) handlePools(w http.ResponseWriter, r *http.Request) {
	s.listKind(w, r, entity.KindPool, "data->>'reserveUSD'")
}

func (s *APIServer) handleTokens(w http.ResponseWriter, r *http.Request) {
	s.listKind(w, r, entity.KindToken, "data->>'tradeVolumeUSD'")
}

func (s *APIServer) handleLoans(w http.ResponseWriter, r *http.Request) {
	s.listKind(w, r, entity.KindFlashLoan, "data->>'timestamp'")
}

func (s *APIServer) handlePoolPrefix(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/pools/")
	parts := strings.Split(path, "/")
	address := strings.ToLower(parts[0])

	if len(parts) == 1 {
		pool, err := s.getEntity(r.Context(), entity.KindPool, address)
		if err != nil || pool == nil {
			Error(w, http.StatusNotFound, "pool not found")
			return
		}
		JSON(w, http.StatusOK, pool, nil)
		return
	}

	switch parts[1] {
	case "loans":
		s.listByPool(w, r, entity.KindFlashLoan, address)
	case "daydata":
		s.listByPool(w, r, entity.KindPoolDayData, address)
	case "hourdata":
		s.listByPool(w, r, entity.KindPoolHourData, address)
	default:
		Error(w, http.StatusNotFound, "not found")
	}
}

func (s *APIServer) listKind(w http.ResponseWriter, r *http.Request, kind, orderBy string) {
	ctx := r.Context()
	limit, offset, page, perPage := parsePagination(r)

	rows, err := s.db.Query(ctx,
		`SELECT data FROM entities WHERE kind = $1
		 ORDER BY `+orderBy+` DESC NULLS LAST
		 LIMIT $2 OFFSET $3`, kind, limit, offset)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	items, err := collectDocs(rows)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	pg := &Pagination{Page: page, PerPage: perPage, HasNext: len(items) == perPage}
	JSON(w, http.StatusOK, items, pg)
}

func (s *APIServer) listByPool(w http.ResponseWriter, r *http.Request, kind, pool string) {
	ctx := r.Context()
	limit, offset, page, perPage := parsePagination(r)

	rows, err := s.db.Query(ctx,
		`SELECT data FROM entities
		 WHERE kind = $1 AND (data->>'pool' = $2 OR data->>'poolAddress' = $2)
		 ORDER BY updated_at DESC
		 LIMIT $3 OFFSET $4`, kind, pool, limit, offset)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	items, err := collectDocs(rows)
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	pg := &Pagination{Page: page, PerPage: perPage, HasNext: len(items) == perPage}
	JSON(w, http.StatusOK, items, pg)
}

func (s *APIServer) getEntity(ctx context.Context, kind, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := s.db.QueryRow(ctx,
		`SELECT data FROM entities WHERE kind = $1 AND id = $2`, kind, id).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

func (s *APIServer) firstOfKind(ctx context.Context, kind string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := s.db.QueryRow(ctx,
		`SELECT data FROM entities WHERE kind = $1 LIMIT 1`, kind).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

func collectDocs(rows pgx.Rows) ([]json.RawMessage, error) {
	defer rows.Close()
	items := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw json.RawMessage
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		items = append(items, raw)
	}
	return items, rows.Err()
}
