package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/models"
)

var base = time.Date(2025, 11, 30, 14, 30, 22, 0, time.UTC)

func event(t models.EventType, sev models.Severity, source string, offset time.Duration) *models.SecurityEvent {
	return &models.SecurityEvent{
		ID:        uuid.New(),
		EventType: t,
		Severity:  sev,
		Source:    source,
		CreatedAt: base.Add(offset),
	}
}

func sampleEvents() []*models.SecurityEvent {
	return []*models.SecurityEvent{
		event(models.EventCSPViolation, models.SeverityMedium, "web", time.Hour),
		event(models.EventRuntimeError, models.SeverityLow, "web", 0),
		event(models.EventCSPViolation, models.SeverityMedium, "admin", 2*time.Hour),
		nil,
		event(models.EventFrequencyAnomaly, models.SeverityHigh, "anomaly-analyzer", -time.Hour),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleEvents())

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.ByType[models.EventCSPViolation])
	assert.Equal(t, 1, s.ByType[models.EventRuntimeError])
	assert.Equal(t, 2, s.BySeverity[models.SeverityMedium])
	assert.Equal(t, 2, s.BySource["web"])
	assert.Equal(t, 1, s.BySource["anomaly-analyzer"])

	require.NotNil(t, s.First)
	require.NotNil(t, s.Last)
	assert.Equal(t, base.Add(-time.Hour), *s.First)
	assert.Equal(t, base.Add(2*time.Hour), *s.Last)

	require.Len(t, s.TopTypes, 3)
	assert.Equal(t, TypeCount{EventType: models.EventCSPViolation, Count: 2}, s.TopTypes[0])
	assert.Equal(t, models.EventFrequencyAnomaly, s.TopTypes[1].EventType, "ties ordered by name")
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Nil(t, s.First)
	assert.Nil(t, s.Last)
	assert.Empty(t, s.TopTypes)
}

func TestNewSnapshot_NilEvents(t *testing.T) {
	snap := NewSnapshot(models.EventFilter{Source: "web"}, nil, base)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"events":[]`)
	assert.Equal(t, "web", snap.Filter.Source)
}

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshot.json")
	snap := NewSnapshot(models.EventFilter{}, sampleEvents()[:3], base)

	written, err := NewFileWriter(path).Write(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 3, decoded.Summary.Total)
	assert.Len(t, decoded.Events, 3)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileWriter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "snapshot.json")
	_, err := NewFileWriter(path).Write(ctx, NewSnapshot(models.EventFilter{}, nil, base))
	assert.ErrorIs(t, err, context.Canceled)
}

type putCall struct {
	bucket      string
	key         string
	contentType string
	body        []byte
}

type fakePutter struct {
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.calls = append(f.calls, putCall{
		bucket:      aws.ToString(in.Bucket),
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        body,
	})
	return &s3.PutObjectOutput{}, nil
}

func TestS3Writer_Write(t *testing.T) {
	putter := &fakePutter{}
	w := NewS3WriterWithClient(putter, "audit", "exports/", "sentinel-0")
	w.now = func() time.Time { return base.Add(123 * time.Nanosecond) }

	snap := NewSnapshot(models.EventFilter{}, sampleEvents()[:3], base)
	key, err := w.Write(context.Background(), snap)
	require.NoError(t, err)

	stem := "exports/2025/11/30/sentinel-0-20251130-143022-123"
	assert.Equal(t, stem+".summary.json", key)

	require.Len(t, putter.calls, 2)
	events := putter.calls[0]
	assert.Equal(t, "audit", events.bucket)
	assert.Equal(t, stem+".jsonl", events.key)
	assert.Equal(t, "application/x-ndjson", events.contentType)

	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(events.body))
	for scanner.Scan() {
		var e models.SecurityEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines++
	}
	assert.Equal(t, 3, lines)

	summary := putter.calls[1]
	assert.Equal(t, "application/json", summary.contentType)
	assert.True(t, strings.Contains(string(summary.body), `"events_key":"`+stem+`.jsonl"`))
}

func TestS3Writer_UploadError(t *testing.T) {
	w := NewS3WriterWithClient(&fakePutter{err: errors.New("access denied")}, "audit", "", "pod")

	_, err := w.Write(context.Background(), NewSnapshot(models.EventFilter{}, nil, base))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload to S3")
}
