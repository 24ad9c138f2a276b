package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const schema = `
	CREATE TABLE IF NOT EXISTS catalog_events (
		id BIGSERIAL PRIMARY KEY,
		invocation_id UUID NOT NULL,
		item_id BIGINT NOT NULL,
		event_type TEXT NOT NULL,
		event_data JSONB NOT NULL,
		version INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (item_id, version)
	);
`

// PostgresJournal stores event streams in Postgres with serializable appends.
type PostgresJournal struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ Journal = (*PostgresJournal)(nil)

// NewPostgresJournal creates the events table if needed.
func NewPostgresJournal(ctx context.Context, db *sql.DB) (*PostgresJournal, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresJournal{
		db:     db,
		tracer: otel.Tracer("ledgerlib/journal"),
	}, nil
}

// AppendEvents atomically appends events with optimistic concurrency control
func (j *PostgresJournal) AppendEvents(ctx context.Context, itemID uint32, expectedVersion int, events []Event) error {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.Int64("item.id", int64(itemID)),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM catalog_events
		WHERE item_id = $1
	`, int64(itemID)).Scan(&currentVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO catalog_events (invocation_id, item_id, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, event := range events {
		version := expectedVersion + i + 1
		data := []byte(event.EventData)
		if len(data) == 0 {
			data = []byte("{}")
		}

		var eventID int64
		err = stmt.QueryRowContext(ctx,
			event.InvocationID,
			int64(itemID),
			event.EventType,
			data,
			version,
			time.Now().UTC(),
		).Scan(&eventID)
		if err != nil {
			// unique (item_id, version) violated by a racing writer
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", eventID),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadEvents retrieves an item's events, optionally bounded by toVersion.
func (j *PostgresJournal) LoadEvents(ctx context.Context, itemID uint32, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := j.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(
			attribute.Int64("item.id", int64(itemID)),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := `
		SELECT id, invocation_id, item_id, event_type, event_data, version, created_at
		FROM catalog_events
		WHERE item_id = $1
		AND version >= $2
	`
	args := []interface{}{int64(itemID), fromVersion}
	if toVersion > 0 {
		query += " AND version <= $3"
		args = append(args, toVersion)
	}
	query += " ORDER BY version ASC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event Event
			id    int64
			data  []byte
		)
		if err := rows.Scan(&event.ID, &event.InvocationID, &id, &event.EventType, &data, &event.Version, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.ItemID = uint32(id)
		event.EventData = data
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version for an item's stream.
func (j *PostgresJournal) GetCurrentVersion(ctx context.Context, itemID uint32) (int, error) {
	ctx, span := j.tracer.Start(ctx, "journal.get_version",
		trace.WithAttributes(attribute.Int64("item.id", int64(itemID))),
	)
	defer span.End()

	var version int
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM catalog_events
		WHERE item_id = $1
	`, int64(itemID)).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("query version: %w", err)
	}

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}
