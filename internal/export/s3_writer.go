package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sentinel/internal/utils"
)

// ObjectPutter is the subset of the S3 client used by S3Writer.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer uploads snapshots to S3. Each snapshot becomes two objects sharing
// a key stem: the events as JSON Lines and the summary as JSON.
type S3Writer struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	podName string
	now     func() time.Time
	logger  *utils.Logger
}

// NewS3Writer creates a writer using the default AWS credential chain.
func NewS3Writer(ctx context.Context, bucket, region, prefix, podName string) (*S3Writer, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3WriterWithClient(s3.NewFromConfig(cfg), bucket, prefix, podName), nil
}

// NewS3WriterWithClient creates a writer around an existing client.
func NewS3WriterWithClient(client ObjectPutter, bucket, prefix, podName string) *S3Writer {
	return &S3Writer{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		podName: podName,
		now:     time.Now,
		logger:  utils.NewLogger("export-s3"),
	}
}

// keyStem builds e.g. exports/2025/11/30/sentinel-0-20251130-143022-123456789
func (w *S3Writer) keyStem(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d",
		w.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		w.podName,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)
}

// Write uploads the events and summary and returns the summary key.
func (w *S3Writer) Write(ctx context.Context, snap *Snapshot) (string, error) {
	stem := w.keyStem(w.now())

	var events bytes.Buffer
	encoder := json.NewEncoder(&events)
	for _, e := range snap.Events {
		if err := encoder.Encode(e); err != nil {
			w.logger.Error("Failed to encode event", "event_id", e.ID, "error", err)
			continue
		}
	}

	eventsKey := stem + ".jsonl"
	if err := w.put(ctx, eventsKey, events.Bytes(), "application/x-ndjson"); err != nil {
		return "", err
	}

	header := struct {
		GeneratedAt time.Time `json:"generated_at"`
		EventsKey   string    `json:"events_key"`
		Summary     Summary   `json:"summary"`
	}{snap.GeneratedAt, eventsKey, snap.Summary}

	summary, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	summaryKey := stem + ".summary.json"
	if err := w.put(ctx, summaryKey, summary, "application/json"); err != nil {
		return "", err
	}

	w.logger.Info("Wrote snapshot to S3", "key", summaryKey, "count", len(snap.Events), "bytes", events.Len())
	return summaryKey, nil
}

func (w *S3Writer) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}
