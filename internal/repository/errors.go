package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("duplicate record")
	ErrStaleVersion = errors.New("record was modified concurrently")
)

// Postgres SQLSTATE codes
const (
	uniqueViolation  = "23505"
	foreignKeyBroken = "23503"
)

// translate maps driver and ORM errors onto repository errors
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return errors.Join(ErrDuplicate, err)
		case foreignKeyBroken:
			return errors.Join(ErrNotFound, err)
		}
	}
	return err
}
