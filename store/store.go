// Package store persists assembled records to Postgres, one row per project
// with the full record as JSONB and the builder's head office as a PostGIS
// point.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/brojonat/gyards/property"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

const srid = 4326

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	logger *slog.Logger
	db     DB
	now    func() time.Time
}

func New(logger *slog.Logger, db DB) *Store {
	return &Store{logger: logger, db: db, now: time.Now}
}

func GetConnPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const upsertProject = `
INSERT INTO projects (id, name, builder_name, record, head_office, scraped_at)
VALUES ($1, $2, $3, $4, ST_GeomFromEWKB($5), $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	builder_name = EXCLUDED.builder_name,
	record = EXCLUDED.record,
	head_office = EXCLUDED.head_office,
	scraped_at = EXCLUDED.scraped_at`

// UpsertRecords writes every record, replacing rows with the same id. It
// keeps going past individual failures and returns how many rows were written
// along with every error joined.
func (s *Store) UpsertRecords(ctx context.Context, records []property.Record) (int, error) {
	var (
		n    int
		errs []error
	)
	ts := s.now().UTC()
	for _, r := range records {
		if err := s.upsert(ctx, r, ts); err != nil {
			if isPGError(err, pgErrorUndefinedTable) {
				return n, fmt.Errorf("projects table missing, run migrations first: %w", err)
			}
			s.logger.Error("error upserting project", "property_id", r.ID, "error", describe(err))
			errs = append(errs, fmt.Errorf("project %s: %w", r.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func (s *Store) upsert(ctx context.Context, r property.Record, ts time.Time) error {
	r.Normalize()
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("error encoding record: %w", err)
	}
	point, err := HeadOfficePoint(r.BuilderInfo.HeadOfficeAddress)
	if err != nil {
		s.logger.Warn("ignoring head office coordinates", "property_id", r.ID, "error", err.Error())
		point = nil
	}
	_, err = s.db.Exec(ctx, upsertProject, r.ID, r.Project.Name, r.BuilderInfo.Name, b, point, ts)
	return err
}

// HeadOfficePoint encodes the office coordinates as an EWKB point in WGS 84.
// A nil office or missing coordinates yields nil and no error.
func HeadOfficePoint(o *property.Office) ([]byte, error) {
	if o == nil || o.Latitude == nil || o.Longitude == nil || *o.Latitude == "" || *o.Longitude == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(*o.Latitude, 64)
	if err != nil {
		return nil, fmt.Errorf("bad latitude %q: %w", *o.Latitude, err)
	}
	lon, err := strconv.ParseFloat(*o.Longitude, 64)
	if err != nil {
		return nil, fmt.Errorf("bad longitude %q: %w", *o.Longitude, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates out of range: %v, %v", lat, lon)
	}
	p := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(srid)
	return ewkb.Marshal(p, binary.LittleEndian)
}
