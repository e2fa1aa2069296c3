package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/kittclouds/aide/internal/pool"
)

// ArtifactPutter is the narrow slice of persistence.Store the uploader
// depends on, so telemetry never needs the rest of the persistence
// contract (or its kernel import) in scope.
type ArtifactPutter interface {
	PutArtifact(key string, data []byte) error
}

// Uploader drains a Queue in the background and flushes batches of
// flight-log records to ArtifactPutter as time-partitioned JSONL files.
type Uploader struct {
	queue     *Queue
	putter    ArtifactPutter
	log       zerolog.Logger
	batchSize int
	flush     time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewUploader builds an Uploader. batchSize <= 0 defaults to 100; flush <= 0
// defaults to 60s.
func NewUploader(q *Queue, putter ArtifactPutter, log zerolog.Logger, batchSize int, flush time.Duration) *Uploader {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flush <= 0 {
		flush = 60 * time.Second
	}
	return &Uploader{
		queue:     q,
		putter:    putter,
		log:       log,
		batchSize: batchSize,
		flush:     flush,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run drains the queue until Stop is called, flushing whenever batchSize
// records accumulate or the flush interval elapses, whichever comes first.
func (u *Uploader) Run() {
	defer close(u.done)
	ticker := time.NewTicker(u.flush)
	defer ticker.Stop()

	for {
		select {
		case <-u.stop:
			u.flushAll()
			return
		case <-ticker.C:
			u.flushOnce()
		default:
			if u.queue.Len() >= u.batchSize {
				u.flushOnce()
			} else {
				time.Sleep(50 * time.Millisecond)
			}
		}
	}
}

// flushOnce drains and uploads a single batch, if any records are queued.
func (u *Uploader) flushOnce() {
	batch := u.queue.DrainUpTo(u.batchSize)
	if len(batch) == 0 {
		return
	}
	u.upload(batch)
}

// flushAll drains and uploads every remaining record, used on shutdown.
func (u *Uploader) flushAll() {
	for {
		batch := u.queue.DrainUpTo(u.batchSize)
		if len(batch) == 0 {
			return
		}
		u.upload(batch)
	}
}

// Stop signals Run to flush everything queued and return, bounded by
// deadline; on timeout, shutdown proceeds without waiting further, since
// uploader failures must never block process shutdown.
func (u *Uploader) Stop(deadline time.Duration) {
	close(u.stop)
	select {
	case <-u.done:
	case <-time.After(deadline):
		u.log.Warn().Msg("telemetry uploader did not finish flushing before shutdown deadline")
	}
}

// upload groups batch by aide_id and writes one JSONL artifact per group,
// retrying once with backoff on failure; a permanently failing group is
// dropped with a warning rather than panicking or blocking the drainer.
func (u *Uploader) upload(batch []Record) {
	byAide := map[string][]Record{}
	for _, r := range batch {
		byAide[r.AideID] = append(byAide[r.AideID], r)
	}

	for aideID, recs := range byAide {
		buf := pool.GetBuffer()
		for _, r := range recs {
			line, err := json.Marshal(r)
			if err != nil {
				u.log.Warn().Err(err).Str("aide_id", aideID).Msg("telemetry: failed to marshal record, dropping")
				continue
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}
		if buf.Len() == 0 {
			pool.PutBuffer(buf)
			continue
		}
		body := append([]byte(nil), buf.Bytes()...)
		pool.PutBuffer(buf)

		batchID := ulid.Make().String()
		key := fmt.Sprintf("flight-logs/%s/%s/%s.jsonl", aideID, time.Now().UTC().Format("2006-01-02"), batchID)

		boff := backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 1)
		err := backoff.Retry(func() error {
			return u.putter.PutArtifact(key, body)
		}, boff)
		if err != nil {
			u.log.Warn().Err(err).Str("key", key).Msg("telemetry: dropping flight-log batch after retry")
		}
	}
}
