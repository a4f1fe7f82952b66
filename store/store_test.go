package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/gyards/property"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

type fakeRow struct {
	ScanFn func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.ScanFn(dest...) }

type fakeDB struct {
	ExecFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.ExecFn(ctx, sql, args...)
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.QueryRowFn(ctx, sql, args...)
}

func ptr(s string) *string { return &s }

func TestHeadOfficePoint(t *testing.T) {
	b, err := HeadOfficePoint(&property.Office{Latitude: ptr("28.4595"), Longitude: ptr("77.0266")})
	require.NoError(t, err)
	g, err := ewkb.Unmarshal(b)
	require.NoError(t, err)
	p, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, srid, p.SRID())
	assert.InDelta(t, 77.0266, p.X(), 1e-9)
	assert.InDelta(t, 28.4595, p.Y(), 1e-9)

	for name, o := range map[string]*property.Office{
		"nil office":      nil,
		"no latitude":     {Longitude: ptr("77.0")},
		"blank longitude": {Latitude: ptr("28.0"), Longitude: ptr("")},
	} {
		b, err := HeadOfficePoint(o)
		assert.NoError(t, err, name)
		assert.Nil(t, b, name)
	}

	_, err = HeadOfficePoint(&property.Office{Latitude: ptr("north"), Longitude: ptr("77.0")})
	assert.Error(t, err)
	_, err = HeadOfficePoint(&property.Office{Latitude: ptr("128.0"), Longitude: ptr("77.0")})
	assert.Error(t, err)
}

func TestUpsertRecords(t *testing.T) {
	var args [][]any
	db := &fakeDB{ExecFn: func(ctx context.Context, sql string, a ...any) (pgconn.CommandTag, error) {
		assert.Contains(t, sql, "ON CONFLICT (id) DO UPDATE")
		args = append(args, a)
		if a[0] == "bad" {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: pgErrorNotNullViolation, Message: "null value"}
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}}
	s := New(discard, db)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	good := property.NewRecord("101")
	good.Project.Name = "Alpha Heights"
	good.BuilderInfo.Name = "Alpha Builders"
	good.BuilderInfo.HeadOfficeAddress = &property.Office{Latitude: ptr("28.1"), Longitude: ptr("77.1")}
	noCoords := property.NewRecord("102")
	noCoords.BuilderInfo.HeadOfficeAddress = &property.Office{Latitude: ptr("n/a"), Longitude: ptr("77.1")}

	n, err := s.UpsertRecords(context.Background(), []property.Record{good, property.NewRecord("bad"), noCoords})
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.True(t, isPGError(err, pgErrorNotNullViolation))
	assert.Contains(t, err.Error(), "project bad")

	require.Len(t, args, 3)
	assert.Equal(t, []any{"101", "Alpha Heights", "Alpha Builders"}, args[0][:3])
	assert.True(t, strings.Contains(string(args[0][3].([]byte)), `"builderInfo"`))
	assert.NotNil(t, args[0][4])
	assert.Nil(t, args[2][4], "unparsable coordinates are stored as null")
	assert.Equal(t, fixed, args[0][5])
}

func TestUpsertRecordsMissingTable(t *testing.T) {
	calls := 0
	db := &fakeDB{ExecFn: func(ctx context.Context, sql string, a ...any) (pgconn.CommandTag, error) {
		calls++
		return pgconn.CommandTag{}, &pgconn.PgError{Code: pgErrorUndefinedTable, Message: `relation "projects" does not exist`}
	}}
	n, err := New(discard, db).UpsertRecords(context.Background(), []property.Record{property.NewRecord("1"), property.NewRecord("2")})
	assert.Zero(t, n)
	assert.ErrorContains(t, err, "run migrations")
	assert.Equal(t, 1, calls)
}

func TestRunMigrations(t *testing.T) {
	t.Run("fresh database", func(t *testing.T) {
		var stmts []string
		db := &fakeDB{
			QueryRowFn: func(ctx context.Context, sql string, a ...any) pgx.Row {
				return fakeRow{ScanFn: func(dest ...any) error { return errors.New("relation does not exist") }}
			},
			ExecFn: func(ctx context.Context, sql string, a ...any) (pgconn.CommandTag, error) {
				stmts = append(stmts, sql)
				return pgconn.CommandTag{}, nil
			},
		}
		require.NoError(t, New(discard, db).RunMigrations(context.Background()))
		n := len(GetSQLMigrations())
		assert.Len(t, stmts, len(GetBootstrapSQLMigrations())+2*n)
		assert.Contains(t, stmts[0], "CREATE TABLE MigrationHead")
		assert.Contains(t, stmts[len(stmts)-1], "UPDATE MigrationHead SET migration_id = $1")
	})

	t.Run("up to date", func(t *testing.T) {
		head := len(GetSQLMigrations()) - 1
		db := &fakeDB{
			QueryRowFn: func(ctx context.Context, sql string, a ...any) pgx.Row {
				return fakeRow{ScanFn: func(dest ...any) error {
					*(dest[0].(*int)) = head
					return nil
				}}
			},
			ExecFn: func(ctx context.Context, sql string, a ...any) (pgconn.CommandTag, error) {
				t.Errorf("unexpected statement %q", sql)
				return pgconn.CommandTag{}, nil
			},
		}
		require.NoError(t, New(discard, db).RunMigrations(context.Background()))
	})

	t.Run("failure stops", func(t *testing.T) {
		db := &fakeDB{
			QueryRowFn: func(ctx context.Context, sql string, a ...any) pgx.Row {
				return fakeRow{ScanFn: func(dest ...any) error {
					*(dest[0].(*int)) = 0
					return nil
				}}
			},
			ExecFn: func(ctx context.Context, sql string, a ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, &pgconn.PgError{Code: pgErrorUndefinedFunction, Message: "no postgis"}
			},
		}
		err := New(discard, db).RunMigrations(context.Background())
		assert.ErrorContains(t, err, "failed at migration 1")
	})
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "unique_violation: dup", describe(&pgconn.PgError{Code: pgErrorUniqueViolation, Message: "dup"}))
	assert.Equal(t, "plain", describe(errors.New("plain")))
	assert.Equal(t, "", pgErrorText("99999"))
}
