package repositories

import "errors"

// errDB is the sentinel database error used across repository tests.
var errDB = errors.New("db failure")
