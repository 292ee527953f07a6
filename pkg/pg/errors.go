package pg

import "errors"

var (
	// ErrInvalidConnectionString indicates the connection string could not be parsed.
	ErrInvalidConnectionString = errors.New("pg.invalid_connection_string")

	// ErrConnectionFailed indicates the database was unreachable within the retry budget.
	ErrConnectionFailed = errors.New("pg.connection_failed")

	// ErrHealthcheckFailed indicates a failed health probe.
	ErrHealthcheckFailed = errors.New("pg.healthcheck_failed")

	// ErrMigrationFailed wraps schema migration failures.
	ErrMigrationFailed = errors.New("pg.migration_failed")

	// ErrMigrationsPathNotProvided indicates Migrate was called without a migrations directory.
	ErrMigrationsPathNotProvided = errors.New("pg.migrations_path_not_provided")
)
