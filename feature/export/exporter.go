package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"table-merger/core/storage"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrBucketMissing is returned when the export bucket does not exist.
var ErrBucketMissing = errors.New("export bucket does not exist")

// Result counts what an export did.
type Result struct {
	Uploaded int   `json:"uploaded"`
	Skipped  int   `json:"skipped"`
	Bytes    int64 `json:"bytes"`
}

// Exporter mirrors a merged table into an object storage bucket.
type Exporter struct {
	client storage.Client
	bucket string
	fs     afero.Fs
	logger *zap.Logger
}

// NewExporter creates an exporter that reads tables from fsys.
func NewExporter(client storage.Client, bucket string, fsys afero.Fs, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{client: client, bucket: bucket, fs: fsys, logger: logger}
}

// Export uploads every file under root to <bucket>/<prefix>/<relative path>.
// Objects already present under the prefix are left alone, mirroring the merge
// rule that an existing entry is never overwritten.
func (e *Exporter) Export(ctx context.Context, root, prefix string) (Result, error) {
	var res Result
	prefix = strings.Trim(prefix, "/")

	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return res, fmt.Errorf("failed to check bucket %s: %w", e.bucket, err)
	}
	if !exists {
		return res, fmt.Errorf("%w: %s", ErrBucketMissing, e.bucket)
	}

	existing, err := e.existingObjects(ctx, prefix)
	if err != nil {
		return res, err
	}

	err = afero.Walk(e.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := objectName(prefix, rel)
		if _, ok := existing[name]; ok {
			res.Skipped++
			e.logger.Debug("Object already exported, skipped", zap.String("object", name))
			return nil
		}

		if err := e.upload(ctx, p, name, info.Size()); err != nil {
			return err
		}
		res.Uploaded++
		res.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return res, err
	}

	e.logger.Info("Export finished",
		zap.String("bucket", e.bucket),
		zap.String("prefix", prefix),
		zap.Int("uploaded", res.Uploaded),
		zap.Int("skipped", res.Skipped),
		zap.Int64("bytes", res.Bytes),
	)
	return res, nil
}

func (e *Exporter) existingObjects(ctx context.Context, prefix string) (map[string]struct{}, error) {
	opts := minio.ListObjectsOptions{Recursive: true}
	if prefix != "" {
		opts.Prefix = prefix + "/"
	}

	existing := make(map[string]struct{})
	for obj := range e.client.ListObjects(ctx, e.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects in %s: %w", e.bucket, obj.Err)
		}
		existing[obj.Key] = struct{}{}
	}
	return existing, nil
}

func (e *Exporter) upload(ctx context.Context, src, name string, size int64) error {
	f, err := e.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	_, err = e.client.PutObject(ctx, e.bucket, name, f, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	e.logger.Debug("Exported object", zap.String("object", name), zap.Int64("size", size))
	return nil
}

func objectName(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}
