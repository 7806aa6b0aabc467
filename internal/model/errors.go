package model

import (
	"database/sql"
	"errors"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
