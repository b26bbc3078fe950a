// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrNotFound indicates that a delete or update matched no
// rows, while IsRetryable tells the booking transaction that MySQL
// aborted it because of lock contention and the whole decision may be
// run again.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when an operation addressed a reservation
// that does not exist. Handlers should translate this into an HTTP
// 404 response.
var ErrNotFound = errors.New("not found")

// MySQL server error numbers raised under lock contention.
const (
	errLockWaitTimeout uint16 = 1205
	errDeadlock        uint16 = 1213
)

// IsRetryable reports whether err is a deadlock or lock wait timeout.
// InnoDB rolls the transaction back in both cases, so the caller can
// start over with a fresh transaction.
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errDeadlock || me.Number == errLockWaitTimeout
}
