package activities

import "errors"

var errDB = errors.New("db failure")
