package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/models"
)

// Postgres wraps a postgres DB connection holding the placement registry.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS placements (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    width INT NOT NULL DEFAULT 0,
    height INT NOT NULL DEFAULT 0,
    formats TEXT[]
);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the required tables if they do not exist.
func (p *Postgres) ensureSchema() error {
	ctx := context.Background()
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LoadPlacements fetches placement definitions from the database.
func (p *Postgres) LoadPlacements(ctx context.Context) ([]models.Placement, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, width, height, formats FROM placements`)
	if err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var pls []models.Placement
	for rows.Next() {
		var pl models.Placement
		var formats []string
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.Width, &pl.Height, pq.Array(&formats)); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		pl.Formats = formats
		pls = append(pls, pl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return pls, nil
}

// UpsertPlacement inserts a placement or updates the existing definition.
func (p *Postgres) UpsertPlacement(ctx context.Context, pl models.Placement) error {
	_, err := p.DB.ExecContext(ctx, `INSERT INTO placements (id, name, width, height, formats) VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, width=EXCLUDED.width, height=EXCLUDED.height, formats=EXCLUDED.formats`,
		pl.ID, pl.Name, pl.Width, pl.Height, pq.Array(pl.Formats))
	if err != nil {
		return fmt.Errorf("upsert placement %s: %w", pl.ID, err)
	}
	return nil
}

// DeletePlacement removes a placement definition.
func (p *Postgres) DeletePlacement(ctx context.Context, id string) error {
	if _, err := p.DB.ExecContext(ctx, `DELETE FROM placements WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete placement %s: %w", id, err)
	}
	return nil
}

// ReloadPlacements loads every placement from Postgres into store.
func ReloadPlacements(ctx context.Context, pg *Postgres, store models.PlacementStore) (int, error) {
	pls, err := pg.LoadPlacements(ctx)
	if err != nil {
		return 0, fmt.Errorf("load placements: %w", err)
	}
	store.ReplaceAll(pls)
	return len(pls), nil
}
