package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quizlens/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_EmptySettings(t *testing.T) {
	st := newTestSQLiteStore(t)

	s, err := st.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, s.SelectedModel)
	assert.Empty(t, s.APIKey(model.ProviderClaude))
	assert.Empty(t, s.Documents)
	assert.False(t, s.ContextActive())
}

func TestSQLite_SaveAndGetSettings(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	in := model.Settings{
		APIKeys:              map[model.Provider]string{model.ProviderClaude: "sk-ant-1"},
		SelectedModel:        "claude-3-7-sonnet",
		DefaultModel:         "gpt-4",
		CustomContext:        "Use the course glossary.",
		CustomContextEnabled: true,
	}
	require.NoError(t, st.SaveSettings(ctx, in))

	out, err := st.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-1", out.APIKey(model.ProviderClaude))
	assert.Equal(t, "claude-3-7-sonnet", out.SelectedModel)
	assert.Equal(t, "gpt-4", out.DefaultModel)
	assert.True(t, out.ContextActive())

	// Last writer wins.
	in.SelectedModel = "grok-2"
	in.APIKeys = nil
	require.NoError(t, st.SaveSettings(ctx, in))
	out, err = st.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "grok-2", out.SelectedModel)
	assert.Empty(t, out.APIKey(model.ProviderClaude))
}

func TestSQLite_SetValue(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetValue(ctx, KeyOpenAI, "sk-open"))
	require.NoError(t, st.SetValue(ctx, KeyOpenAI, "sk-open-2"))
	require.NoError(t, st.SetValue(ctx, KeyCustomContextEnabled, "true"))

	s, err := st.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-open-2", s.APIKey(model.ProviderOpenAI))
	assert.True(t, s.CustomContextEnabled)

	err = st.SetValue(ctx, "favourite_colour", "blue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")
}

func TestSQLite_Documents(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.AddDocument(ctx, model.ContextDocument{
		Name:          "syllabus.pdf",
		ExtractedText: "Week 1: cells",
		UploadedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, int64(len("Week 1: cells")), first.SizeBytes)

	second, err := st.AddDocument(ctx, model.ContextDocument{Name: "notes.md", ExtractedText: "Mitosis", SizeBytes: 99})
	require.NoError(t, err)
	assert.False(t, second.UploadedAt.IsZero())

	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, first.ID, docs[0].ID)
	assert.Equal(t, "Week 1: cells", docs[0].ExtractedText)
	assert.True(t, first.UploadedAt.Equal(docs[0].UploadedAt))
	assert.Equal(t, int64(99), docs[1].SizeBytes)

	require.NoError(t, st.SetValue(ctx, KeyCustomContextEnabled, "true"))
	s, err := st.GetSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, s.Documents, 2)
	assert.Contains(t, s.ContextBlob(), "--- syllabus.pdf ---\nWeek 1: cells")
	assert.True(t, s.ContextActive())

	require.NoError(t, st.DeleteDocument(ctx, first.ID))
	docs, err = st.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.md", docs[0].Name)

	err = st.DeleteDocument(ctx, first.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDocumentNotFound))
}

func TestSQLite_AddDocumentRequiresName(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.AddDocument(context.Background(), model.ContextDocument{ExtractedText: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.SetValue(context.Background(), KeyDefaultModel, "gpt-4"))
	s, err := st.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", s.SelectedModel)
}
