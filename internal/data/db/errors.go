package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/platform/apierr"
)

// MapError folds storage failures into the shared error taxonomy.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, apierr.ErrValidation),
		errors.Is(err, apierr.ErrNotFound),
		errors.Is(err, apierr.ErrConflict),
		errors.Is(err, apierr.ErrBusy):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apierr.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, apierr.ErrConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, apierr.ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", op, apierr.ErrNotFound)
		}
		return &apierr.RemoteServiceError{Service: "database", Code: pgErr.Code, Message: op + ": " + pgErr.Message, Err: err}
	}
	return &apierr.RemoteServiceError{Service: "database", Message: op, Err: err}
}
