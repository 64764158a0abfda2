package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrOwnerMissing is returned when a row references a user that has no users row yet
	ErrOwnerMissing = errors.New("owning user row does not exist")
)

const pqForeignKeyViolation = "23503"

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
		return ErrOwnerMissing
	}
	return err
}

// likePattern escapes LIKE metacharacters so user search text matches literally.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
