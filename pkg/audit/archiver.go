package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/platinummonkey/lockbox/pkg/async"
)

// Upload tuning for retention cleanup. A year of events splits into
// chunks small enough to buffer in memory and upload in parallel.
const (
	archiveChunkSize     = 1000
	archiveUploadWorkers = 4
	archiveUploadTimeout = 5 * time.Minute
)

// S3Client is the subset of the S3 API the archiver uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads expired audit events to object storage before the
// retention cleanup deletes them. Archives are gzipped NDJSON keyed by
// the cutoff date, so a compliance review can pull a day's events
// without scanning the bucket.
type Archiver struct {
	client S3Client
	bucket string
	prefix string
}

// NewArchiver creates an archiver writing to the given bucket/prefix.
func NewArchiver(client S3Client, bucket, prefix string) *Archiver {
	if prefix == "" {
		prefix = "audit-archive"
	}
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// Archive uploads the events as a single gzipped NDJSON object and
// returns the object key. An empty batch uploads nothing.
func (a *Archiver) Archive(ctx context.Context, events []*AuditEvent, cutoff time.Time) (string, error) {
	if len(events) == 0 {
		return "", nil
	}

	payload, err := exportNDJSON(events)
	if err != nil {
		return "", fmt.Errorf("failed to encode archive: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return "", fmt.Errorf("failed to compress archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to compress archive: %w", err)
	}

	key := fmt.Sprintf("%s/%s/audit-%d.ndjson.gz",
		a.prefix, cutoff.UTC().Format("2006-01-02"), time.Now().UnixNano())

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	return key, nil
}

// ArchiveAll uploads the events as a series of gzipped NDJSON objects,
// archiveChunkSize events apiece, with the uploads running on a small
// worker pool. Any failed upload fails the whole call so the caller
// does not delete events that were never archived.
func (a *Archiver) ArchiveAll(ctx context.Context, events []*AuditEvent, cutoff time.Time) error {
	if len(events) == 0 {
		return nil
	}

	var chunks [][]*AuditEvent
	for start := 0; start < len(events); start += archiveChunkSize {
		end := start + archiveChunkSize
		if end > len(events) {
			end = len(events)
		}
		chunks = append(chunks, events[start:end])
	}

	errs := async.Batch(ctx, chunks, archiveUploadWorkers, "audit archive upload", archiveUploadTimeout,
		func(ctx context.Context, chunk []*AuditEvent) error {
			_, err := a.Archive(ctx, chunk, cutoff)
			return err
		})
	if len(errs) > 0 {
		return fmt.Errorf("failed to upload %d archive batch(es): %w", len(errs), errs[0])
	}
	return nil
}
