package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/garyjia/receipt-approval/internal/domain/apperr"
)

// mapError translates driver errors into the apperr taxonomy.
// Constraint violations become conflicts; anything else is an infrastructure failure.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s", op)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return apperr.Conflict("%s: %s already exists", op, uniqueColumn(sqliteErr))
		case sqlite3.ErrConstraintForeignKey:
			return apperr.Conflict("%s: referenced record is missing or still in use", op)
		case sqlite3.ErrConstraintCheck:
			return apperr.Validation("%s: %v", op, sqliteErr)
		}
	}
	return apperr.Infrastructure(op, err)
}

// uniqueColumn extracts "users.email" from "UNIQUE constraint failed: users.email"
func uniqueColumn(err sqlite3.Error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return "record"
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64PtrFrom(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
