package repository

import "errors"

// ErrNotFound is returned when a query for a single entity finds nothing.
//
// The service layer translates it into app_errors.ErrNotFound, so business
// logic never sees sql.ErrNoRows or redis.Nil.
var ErrNotFound = errors.New("repository: not found")
