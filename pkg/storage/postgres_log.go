package storage

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresEventLog stores events and results in PostgreSQL.
type PostgresEventLog struct {
	pool *pgxpool.Pool
}

// OpenPostgresEventLog connects, verifies the connection and applies the
// embedded migrations.
func OpenPostgresEventLog(ctx context.Context, dsn string) (*PostgresEventLog, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logging.Info().Int32("max_conns", poolConfig.MaxConns).Msg("database connection established")
	return NewPostgresEventLog(pool), nil
}

func NewPostgresEventLog(pool *pgxpool.Pool) *PostgresEventLog {
	return &PostgresEventLog{pool: pool}
}

// Migrate applies the embedded goose migrations to the pool's database.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (p *PostgresEventLog) SaveEvent(ctx context.Context, event models.LoginEvent) error {
	var geo []byte
	if event.Geo != nil {
		var err error
		if geo, err = json.Marshal(event.Geo); err != nil {
			return fmt.Errorf("marshal geo: %w", err)
		}
	}

	query := `
		INSERT INTO login_events (id, user_id, ip, device_id, browser, success, geo, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := p.pool.Exec(ctx, query,
		event.ID, event.UserID, event.IP, event.DeviceID, event.Browser, event.Success, geo, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert login event: %w", err)
	}
	return nil
}

func (p *PostgresEventLog) SaveResult(ctx context.Context, result models.RiskAssessment) error {
	reasons, err := json.Marshal(result.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}
	geo, err := json.Marshal(result.Geo)
	if err != nil {
		return fmt.Errorf("marshal geo: %w", err)
	}
	var ensemble []byte
	if result.Ensemble != nil {
		if ensemble, err = json.Marshal(result.Ensemble); err != nil {
			return fmt.Errorf("marshal ensemble: %w", err)
		}
	}

	query := `
		INSERT INTO login_results (user_id, risk_score, status, reasons, geo, ensemble, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = p.pool.Exec(ctx, query,
		result.UserID, result.RiskScore, string(result.Status), reasons, geo, ensemble, result.Timestamp)
	if err != nil {
		return fmt.Errorf("insert login result: %w", err)
	}
	return nil
}

func (p *PostgresEventLog) ListEvents(ctx context.Context, limit int) ([]models.LoginEvent, error) {
	query := `
		SELECT id, user_id, ip, device_id, browser, success, geo, ts FROM (
			SELECT * FROM login_events ORDER BY seq DESC LIMIT $1
		) recent ORDER BY seq ASC
	`
	rows, err := p.pool.Query(ctx, query, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query login events: %w", err)
	}
	defer rows.Close()

	events := make([]models.LoginEvent, 0)
	for rows.Next() {
		var (
			e   models.LoginEvent
			geo []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.IP, &e.DeviceID, &e.Browser, &e.Success, &geo, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan login event: %w", err)
		}
		if len(geo) > 0 {
			e.Geo = &models.GeoLocation{}
			if err := json.Unmarshal(geo, e.Geo); err != nil {
				return nil, fmt.Errorf("decode geo: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (p *PostgresEventLog) ListResults(ctx context.Context, limit int) ([]models.RiskAssessment, error) {
	query := `
		SELECT user_id, risk_score, status, reasons, geo, ensemble, ts FROM (
			SELECT * FROM login_results ORDER BY seq DESC LIMIT $1
		) recent ORDER BY seq ASC
	`
	rows, err := p.pool.Query(ctx, query, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query login results: %w", err)
	}
	defer rows.Close()

	results := make([]models.RiskAssessment, 0)
	for rows.Next() {
		var (
			r                      models.RiskAssessment
			status                 string
			reasons, geo, ensemble []byte
		)
		if err := rows.Scan(&r.UserID, &r.RiskScore, &status, &reasons, &geo, &ensemble, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan login result: %w", err)
		}
		r.Status = models.Status(status)
		if err := json.Unmarshal(reasons, &r.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons: %w", err)
		}
		if err := json.Unmarshal(geo, &r.Geo); err != nil {
			return nil, fmt.Errorf("decode geo: %w", err)
		}
		if len(ensemble) > 0 {
			r.Ensemble = &models.EnsembleView{}
			if err := json.Unmarshal(ensemble, r.Ensemble); err != nil {
				return nil, fmt.Errorf("decode ensemble: %w", err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (p *PostgresEventLog) Close() error {
	p.pool.Close()
	return nil
}

// LIMIT NULL means no limit in PostgreSQL.
func sqlLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
