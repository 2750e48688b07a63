package archive

import "codeberg.org/mutker/windmon/internal/errors"

const (
	ErrInvalidDBPath    = errors.ErrorCode("archive_invalid_db_path")
	ErrSchemaInitFailed = errors.ErrorCode("archive_schema_init_failed")
	ErrStorageAccess    = errors.ErrorCode("archive_storage_access_failed")
	ErrStorageInit      = errors.ErrInitFailed
	ErrStorageClose     = errors.ErrShutdownFailed
)
