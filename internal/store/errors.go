package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	msgInvalidCredentials = "the login / password combination is not valid"
	msgDatabaseError      = "error while communicating with the database"
)

// postgres SQLSTATE codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// rejection is a business refusal whose text goes back to the client as is.
type rejection struct {
	reason string
}

func (r *rejection) Error() string {
	return r.reason
}

func rejectf(format string, args ...any) error {
	return &rejection{reason: fmt.Sprintf(format, args...)}
}

var (
	errProductNotFound  = &rejection{reason: "product not found"}
	errOrderNotFound    = &rejection{reason: "order not found"}
	errEmployeeNotFound = &rejection{reason: "employee not found"}
)

// isUniqueViolation recognizes duplicate keys from gorm's translated errors and from raw pg errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
