package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique constraint
// violation. Both the postgres and sqlite message forms are matched so retry
// paths behave the same under the test driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
