package logoutsync

import "errors"

var (
	// ErrAuditWriteFailed indicates the append-only logout audit insert
	// failed. This aborts the pipeline: losing the audit silently is
	// unacceptable.
	ErrAuditWriteFailed = errors.New("logoutsync.audit_write_failed")
)
