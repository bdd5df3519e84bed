package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "behaviortrace/pkg/domain"
)

// PostgresStore is the production event store. JSON payload columns are
// stored as JSONB so window queries stay cheap while payloads stay opaque.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	eventCtx, err := json.Marshal(e.Context)
	if err != nil {
		return fmt.Errorf("marshal event context: %w", err)
	}
	browser, err := json.Marshal(e.BrowserInfo)
	if err != nil {
		return fmt.Errorf("marshal browser info: %w", err)
	}
	perf, err := json.Marshal(e.PerformanceMetrics)
	if err != nil {
		return fmt.Errorf("marshal performance metrics: %w", err)
	}

	query := `
		INSERT INTO behavioral_events (
			id, user_id, user_role, facility_id, organization_id,
			event_type, event_category, created_at, session_id,
			ip_hash, user_agent_hash, url_path, http_method,
			event_data, context, browser_info, performance_metrics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		e.ID,
		uuid.UUID(e.UserID),
		e.UserRole,
		nullableUUID(uuid.UUID(e.FacilityID)),
		nullableUUID(uuid.UUID(e.OrganizationID)),
		e.Type,
		string(e.Category),
		e.CreatedAt,
		e.SessionID,
		e.IPHash,
		e.UserAgentHash,
		e.URLPath,
		e.HTTPMethod,
		data,
		eventCtx,
		browser,
		perf,
	)
	if err != nil {
		return fmt.Errorf("insert behavioral event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, cutoff time.Time) ([]Event, error) {
	query := selectColumns + ` WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(userID), cutoff)
	if err != nil {
		return nil, fmt.Errorf("query events by user: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) ListSince(ctx context.Context, cutoff time.Time) ([]Event, error) {
	query := selectColumns + ` WHERE created_at >= $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query events since cutoff: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) CountSince(ctx context.Context, t time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM behavioral_events WHERE created_at > $1`, t,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events since: %w", err)
	}
	return count, nil
}

const selectColumns = `
	SELECT id, user_id, user_role, facility_id, organization_id,
	       event_type, event_category, created_at, session_id,
	       ip_hash, user_agent_hash, url_path, http_method,
	       event_data, context, browser_info, performance_metrics
	FROM behavioral_events`

func scanEvents(rows pgx.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var (
			e          Event
			userID     uuid.UUID
			facility   *uuid.UUID
			org        *uuid.UUID
			category   string
			data       []byte
			eventCtx   []byte
			browser    []byte
			perf       []byte
		)
		err := rows.Scan(
			&e.ID, &userID, &e.UserRole, &facility, &org,
			&e.Type, &category, &e.CreatedAt, &e.SessionID,
			&e.IPHash, &e.UserAgentHash, &e.URLPath, &e.HTTPMethod,
			&data, &eventCtx, &browser, &perf,
		)
		if err != nil {
			return nil, fmt.Errorf("scan behavioral event: %w", err)
		}

		e.UserID = id.UserID(userID)
		if facility != nil {
			e.FacilityID = id.FacilityID(*facility)
		}
		if org != nil {
			e.OrganizationID = id.OrganizationID(*org)
		}
		e.Category = Category(category)

		if err := json.Unmarshal(data, &e.Data); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		if err := json.Unmarshal(eventCtx, &e.Context); err != nil {
			return nil, fmt.Errorf("unmarshal event context: %w", err)
		}
		if err := json.Unmarshal(browser, &e.BrowserInfo); err != nil {
			return nil, fmt.Errorf("unmarshal browser info: %w", err)
		}
		if err := json.Unmarshal(perf, &e.PerformanceMetrics); err != nil {
			return nil, fmt.Errorf("unmarshal performance metrics: %w", err)
		}

		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate behavioral events: %w", err)
	}
	return out, nil
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
