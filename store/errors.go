package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

func isPGError(err error, code string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == code
}

// see https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrorNotNullViolation  = "23502"
	pgErrorUniqueViolation   = "23505"
	pgErrorCheckViolation    = "23514"
	pgErrorInvalidJSONText   = "22P02"
	pgErrorUndefinedTable    = "42P01"
	pgErrorUndefinedFunction = "42883"
)

func pgErrorText(code string) string {
	switch code {
	case pgErrorNotNullViolation:
		return "not_null_violation"
	case pgErrorUniqueViolation:
		return "unique_violation"
	case pgErrorCheckViolation:
		return "check_violation"
	case pgErrorInvalidJSONText:
		return "invalid_text_representation"
	case pgErrorUndefinedTable:
		return "undefined_table"
	case pgErrorUndefinedFunction:
		return "undefined_function"
	default:
		return ""
	}
}

// describe renders err with its postgres condition name when it has one.
func describe(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if t := pgErrorText(pgErr.Code); t != "" {
			return t + ": " + pgErr.Message
		}
	}
	return err.Error()
}
