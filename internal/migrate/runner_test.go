package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"chatgrep/internal/archive"
	"chatgrep/internal/legacy"
	"chatgrep/internal/store"
)

type fakeStore struct {
	watermarks   []store.GroupWatermark
	watermarkErr error

	batches  [][]archive.Message
	indexErr error
	failNext int // per-item failures reported on the next batch
}

func (f *fakeStore) GroupWatermarks(context.Context) ([]store.GroupWatermark, error) {
	return f.watermarks, f.watermarkErr
}

func (f *fakeStore) BulkIndex(_ context.Context, msgs []archive.Message) (store.BulkResult, error) {
	if f.indexErr != nil {
		return store.BulkResult{}, f.indexErr
	}
	batch := make([]archive.Message, len(msgs))
	copy(batch, msgs)
	f.batches = append(f.batches, batch)

	failed := f.failNext
	f.failNext = 0
	return store.BulkResult{Accepted: len(msgs) - failed, Failed: failed}, nil
}

type fakeCursor struct {
	docs []bson.M
	pos  int
	err  error
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	*(val.(*bson.M)) = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error                  { return c.err }
func (c *fakeCursor) Close(context.Context) error { return nil }

type fakeSource struct {
	docs      map[int64][]bson.M
	countErr  error
	streamErr error
	cursorErr error

	countCalls  int
	streamCalls int
}

func (f *fakeSource) Count(_ context.Context, filter legacy.Filter) (int64, error) {
	f.countCalls++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.docs[filter.ChatID])), nil
}

func (f *fakeSource) Stream(_ context.Context, filter legacy.Filter) (legacy.Cursor, error) {
	f.streamCalls++
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	return &fakeCursor{docs: f.docs[filter.ChatID], err: f.cursorErr}, nil
}

func legacyDoc(chatID, messageID int64) bson.M {
	return bson.M{
		"group_id": chatID,
		"msg_ctx":  bson.M{"message_id": messageID, "command": "hi"},
		"date":     int64(1600000000),
		"msg_type": int32(0),
	}
}

func TestRunMigratesBelowWatermark(t *testing.T) {
	// Store has chat 42 with minimum stored message id 1000; the legacy
	// store holds message ids 997..999. Batch size 2 gives one batch of 2
	// and one of 1.
	st := &fakeStore{watermarks: []store.GroupWatermark{{ChatID: 42, MinMessageID: 1000}}}
	src := &fakeSource{docs: map[int64][]bson.M{
		42: {legacyDoc(42, 997), legacyDoc(42, 998), legacyDoc(42, 999)},
	}}

	report, err := NewRunner(st, src, Config{BatchSize: 2}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, st.batches, 2)
	assert.Len(t, st.batches[0], 2)
	assert.Len(t, st.batches[1], 1)
	assert.Equal(t, int64(997), st.batches[0][0].MessageID)
	assert.Equal(t, int64(999), st.batches[1][0].MessageID)

	assert.Equal(t, 3, report.Accepted)
	assert.Equal(t, 0, report.Errors)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, int64(42), report.Groups[0].ChatID)
	assert.Equal(t, int64(1000), report.Groups[0].Watermark)
	assert.Equal(t, int64(3), report.Groups[0].Matched)
	assert.NotEmpty(t, report.RunID)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	st := &fakeStore{watermarks: []store.GroupWatermark{{ChatID: 42, MinMessageID: 1000}}}
	src := &fakeSource{docs: map[int64][]bson.M{
		42: {legacyDoc(42, 997), legacyDoc(42, 998), legacyDoc(42, 999)},
	}}

	report, err := NewRunner(st, src, Config{BatchSize: 2, DryRun: true}).Run(context.Background())
	require.NoError(t, err)

	// Same counts as a real run, zero writes.
	assert.Empty(t, st.batches)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Accepted)
	assert.Equal(t, 0, report.Errors)
}

func TestRunSkipsChatWithNoMatches(t *testing.T) {
	st := &fakeStore{watermarks: []store.GroupWatermark{{ChatID: 42, MinMessageID: 1000}}}
	src := &fakeSource{docs: map[int64][]bson.M{}}

	report, err := NewRunner(st, src, Config{BatchSize: 2}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, src.countCalls)
	assert.Zero(t, src.streamCalls, "no cursor should be opened for an empty chat")
	assert.Empty(t, st.batches)
	assert.Equal(t, 0, report.Accepted)
	assert.Equal(t, 0, report.Errors)
}

func TestRunCountsPerItemFailures(t *testing.T) {
	st := &fakeStore{
		watermarks: []store.GroupWatermark{{ChatID: 1, MinMessageID: 100}},
		failNext:   2,
	}
	src := &fakeSource{docs: map[int64][]bson.M{
		1: {legacyDoc(1, 10), legacyDoc(1, 11), legacyDoc(1, 12), legacyDoc(1, 13), legacyDoc(1, 14)},
	}}

	report, err := NewRunner(st, src, Config{BatchSize: 5}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Accepted)
	assert.Equal(t, 2, report.Errors)
}

func TestRunCountsParseFailures(t *testing.T) {
	broken := bson.M{"group_id": int64(1)} // missing message id and date
	st := &fakeStore{watermarks: []store.GroupWatermark{{ChatID: 1, MinMessageID: 100}}}
	src := &fakeSource{docs: map[int64][]bson.M{
		1: {legacyDoc(1, 10), broken, legacyDoc(1, 11)},
	}}

	report, err := NewRunner(st, src, Config{BatchSize: 10}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 1, report.Errors)
}

func TestRunWriteFailureCountsWholeBatch(t *testing.T) {
	st := &fakeStore{
		watermarks: []store.GroupWatermark{{ChatID: 1, MinMessageID: 100}},
		indexErr:   errors.New("store down"),
	}
	src := &fakeSource{docs: map[int64][]bson.M{
		1: {legacyDoc(1, 10), legacyDoc(1, 11), legacyDoc(1, 12)},
	}}

	report, err := NewRunner(st, src, Config{BatchSize: 2}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Accepted)
	assert.Equal(t, 3, report.Errors)
}

func TestRunOneChatFailureDoesNotAbortOthers(t *testing.T) {
	st := &fakeStore{watermarks: []store.GroupWatermark{
		{ChatID: 1, MinMessageID: 100},
		{ChatID: 2, MinMessageID: 200},
	}}
	src := &fakeSource{
		docs: map[int64][]bson.M{
			1: {legacyDoc(1, 10)},
			2: {legacyDoc(2, 20)},
		},
	}
	// First chat's stream fails, second proceeds.
	calls := 0
	failFirst := &streamFailingSource{inner: src, failOn: func() bool { calls++; return calls == 1 }}

	report, err := NewRunner(st, failFirst, Config{BatchSize: 10}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Groups, 2)
	assert.Equal(t, 1, report.Groups[0].Errors)
	assert.Equal(t, 1, report.Groups[1].Accepted)
}

type streamFailingSource struct {
	inner  *fakeSource
	failOn func() bool
}

func (s *streamFailingSource) Count(ctx context.Context, f legacy.Filter) (int64, error) {
	return s.inner.Count(ctx, f)
}

func (s *streamFailingSource) Stream(ctx context.Context, f legacy.Filter) (legacy.Cursor, error) {
	if s.failOn() {
		return nil, errors.New("cursor refused")
	}
	return s.inner.Stream(ctx, f)
}

func TestRunEmptyWatermarksIsNoOp(t *testing.T) {
	st := &fakeStore{}
	src := &fakeSource{}

	report, err := NewRunner(st, src, Config{BatchSize: 2}).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Groups)
	assert.Zero(t, src.countCalls)
}

func TestRunWatermarkErrorAborts(t *testing.T) {
	st := &fakeStore{watermarkErr: errors.New("cluster unreachable")}
	src := &fakeSource{}

	_, err := NewRunner(st, src, Config{BatchSize: 2}).Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, src.countCalls, "no legacy reads before watermark resolution succeeds")
}
