package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeLockContention   = "lock_contention"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonPartialFailure       = "partial_failure"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerBatchDeferredReasonLockHeld = "lock_held"
	SchedulerBatchDeferredReasonNotDue   = "not_due"
)

// ErrPartialBatch marks a batch where some KOLs failed and the rest were processed.
var ErrPartialBatch = errors.New("partial_batch_failure")

// SQLSTATE codes the scheduler reports on separately.
var pgReasons = map[string]string{
	"55P03": SchedulerJobReasonDBLockTimeout,
	"40001": SchedulerJobReasonSerializationFailure,
	"23505": SchedulerJobReasonUniqueViolation,
}

func isCancellation(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func pgCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	return "", false
}

// ClassifySchedulerJobReason maps a job error onto the errors_total reason label.
func ClassifySchedulerJobReason(err error) string {
	if err == nil {
		return SchedulerJobReasonUnknown
	}
	if isCancellation(err) {
		return SchedulerJobReasonDeadlineExceeded
	}
	if code, ok := pgCode(err); ok {
		if reason, known := pgReasons[code]; known {
			return reason
		}
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return SchedulerJobReasonUniqueViolation
	case errors.Is(err, ErrPartialBatch):
		return SchedulerJobReasonPartialFailure
	}
	return SchedulerJobReasonUnknown
}

// ClassifySchedulerErrorType is the coarser grouping used in log lines.
func ClassifySchedulerErrorType(err error) string {
	if err == nil {
		return SchedulerErrorTypeUnknown
	}
	if isCancellation(err) {
		return SchedulerErrorTypeDeadlineExceeded
	}
	switch ClassifySchedulerJobReason(err) {
	case SchedulerJobReasonDBLockTimeout, SchedulerJobReasonSerializationFailure:
		return SchedulerErrorTypeLockContention
	}
	if isDBError(err) {
		return SchedulerErrorTypeDB
	}
	return SchedulerErrorTypeBusinessRule
}

// IsSchedulerErrorRetryable is true for cancellations and database faults;
// the next due run retries them.
func IsSchedulerErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	return isCancellation(err) || isDBError(err)
}

var gormFaults = []error{
	gorm.ErrInvalidDB,
	gorm.ErrInvalidTransaction,
	gorm.ErrInvalidData,
	gorm.ErrMissingWhereClause,
	gorm.ErrDuplicatedKey,
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	for _, target := range gormFaults {
		if errors.Is(err, target) {
			return true
		}
	}
	_, ok := pgCode(err)
	return ok
}
