package blob

import (
	"context"
	"fmt"
	"os"

	"preordercore/internal/infra/blob/fs"
	"preordercore/internal/infra/blob/memory"
	"preordercore/internal/infra/blob/s3"
)

// Open selects a blob.Store implementation using environment variables.
//
//	PREORDERCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	PREORDERCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in the s3 package)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("PREORDERCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("PREORDERCORE_BLOB_FS_ROOT")
		return fs.New(root)
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
