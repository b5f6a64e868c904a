package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/pipeline"
)

func openMemory(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func audioRecord(id string, at time.Time, intent string) pipeline.Record {
	return pipeline.Record{
		ID:              id,
		InputFile:       "/in/" + id + ".wav",
		FileType:        constants.Audio,
		Timestamp:       at,
		TranscriptText:  "text",
		Intent:          intent,
		Confidence:      0.85,
		Parameters:      map[string]string{"date": "Monday"},
		ResponseText:    "ok",
		Outputs:         map[string]string{"transcript": "/out/" + id + "/transcript.txt"},
		CompletedStages: constants.AudioStages,
	}
}

func documentRecord(id string, at time.Time, failed bool) pipeline.Record {
	rec := pipeline.Record{
		ID:              id,
		InputFile:       "/in/" + id + ".png",
		FileType:        constants.Image,
		Timestamp:       at,
		RawText:         "DOB: 05/21/1990",
		ExtractedFields: map[string]string{"date_of_birth": "05/21/1990"},
		FieldCount:      1,
		CompletedStages: constants.DocumentStages,
	}
	if failed {
		rec.CompletedStages = nil
		rec.ExtractedFields = nil
		rec.FieldCount = 0
		rec.Error = &pipeline.RecordError{Stage: constants.StageOCR, Message: "tesseract: exit status 1"}
	}
	return rec
}

func TestPutGet(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	rec := audioRecord("a1", base, "book_appointment")
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, rec.Intent, got.Intent)
	assert.Equal(t, rec.Parameters, got.Parameters)
	assert.Equal(t, rec.Outputs, got.Outputs)
	assert.True(t, rec.Timestamp.Equal(got.Timestamp))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutReplaces(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, documentRecord("d1", base, true)))
	require.NoError(t, s.Put(ctx, documentRecord("d1", base, false)))

	got, err := s.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, got.Error)
	assert.Equal(t, 1, got.FieldCount)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPutRequiresID(t *testing.T) {
	s := openMemory(t)
	assert.Error(t, s.Put(context.Background(), pipeline.Record{}))
}

func TestListFilters(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	for _, rec := range []pipeline.Record{
		audioRecord("a1", base, "book_appointment"),
		audioRecord("a2", base.Add(time.Minute), "get_weather"),
		documentRecord("d1", base.Add(2*time.Minute), false),
		documentRecord("d2", base.Add(3*time.Minute), true),
	} {
		require.NoError(t, s.Put(ctx, rec))
	}

	ids := func(recs []pipeline.Record) []string {
		var out []string
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out
	}

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2", "d1", "a2", "a1"}, ids(all))

	audio, err := s.List(ctx, Filter{Kind: constants.Audio})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1"}, ids(audio))

	failed, err := s.List(ctx, Filter{Status: constants.RunStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, ids(failed))

	weather, err := s.List(ctx, Filter{Intent: "get_weather"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, ids(weather))

	recent, err := s.List(ctx, Filter{Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2", "d1"}, ids(recent))

	page, err := s.List(ctx, Filter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "a2"}, ids(page))
}

func TestDeleteBefore(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, audioRecord("old", base, "play_music")))
	require.NoError(t, s.Put(ctx, audioRecord("new", base.Add(48*time.Hour), "play_music")))

	n, err := s.DeleteBefore(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestOpenFileBackedSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverSQLite, DSN: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, audioRecord("a1", base, "get_weather")))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{DSN: path}, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "get_weather", got.Intent)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, nil)
	assert.Error(t, err)
}

func TestWherePlaceholders(t *testing.T) {
	cond, args := where(Filter{Kind: constants.Image, Intent: "x"}, func(n int) string { return "$" + string(rune('0'+n)) }, nil)
	assert.Equal(t, " WHERE kind = $1 AND intent = $2", cond)
	assert.Equal(t, []any{"image", "x"}, args)

	cond, args = where(Filter{}, nil, nil)
	assert.Empty(t, cond)
	assert.Nil(t, args)
}
