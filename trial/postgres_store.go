package trial

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresSink implements EventSink with PostgreSQL persistence, giving
// external collaborators a durable copy of the event log.
type PostgresSink struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresSink creates a new PostgreSQL-backed event sink.
func NewPostgresSink(config *PostgresConfig) (*PostgresSink, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	sink := &PostgresSink{db: db}
	if err := sink.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return sink, nil
}

func (s *PostgresSink) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trial_events (
		id UUID PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_trial_events_type ON trial_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_trial_events_occurred ON trial_events(occurred_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveEvent persists one committed event.
func (s *PostgresSink) SaveEvent(event Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO trial_events (id, event_type, occurred_at, payload)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		event.At,
		[]byte(event.Payload),
	)
	return err
}

// LoadEvents retrieves all persisted events in occurrence order.
func (s *PostgresSink) LoadEvents() ([]Event, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, occurred_at, payload
		FROM trial_events
		ORDER BY occurred_at, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			id        uuid.UUID
			eventType string
			at        time.Time
			payload   []byte
		)
		if err := rows.Scan(&id, &eventType, &at, &payload); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		events = append(events, Event{
			ID:      id,
			Type:    EventType(eventType),
			At:      at,
			Payload: payload,
		})
	}

	return events, rows.Err()
}

// Close closes the database connection.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
