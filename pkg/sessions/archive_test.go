package sessions

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexlanka/gavel/pkg/config"
)

func sqliteArchive(t *testing.T) *SQLArchive {
	t.Helper()
	cfg := &config.ArchiveConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "archive.db"),
	}
	cfg.SetDefaults()

	a, err := NewSQLArchive(cfg)
	require.NoError(t, err)
	require.NotNil(t, a)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewSQLArchiveDisabled(t *testing.T) {
	a, err := NewSQLArchive(&config.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestSQLArchiveSessionLifecycle(t *testing.T) {
	a := sqliteArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Ping(ctx))

	s, err := a.CreateSession(ctx, "budget questions")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "budget questions", s.Name)

	listed, err := a.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, s.ID, listed[0].ID)

	require.NoError(t, a.DeleteSession(ctx, s.ID))
	listed, err = a.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSQLArchiveAppendOrdering(t *testing.T) {
	a := sqliteArchive(t)
	ctx := context.Background()

	// First append creates the session row implicitly.
	m1, err := a.AppendMessage(ctx, "s1", "user", "Q1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, m1.SequenceNum)

	m2, err := a.AppendMessage(ctx, "s1", "assistant", "A1", `{"lang":"en"}`)
	require.NoError(t, err)
	assert.Equal(t, 2, m2.SequenceNum)

	s, msgs, err := a.SessionWithMessages(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Q1", msgs[0].Content)
	assert.Equal(t, "A1", msgs[1].Content)
	assert.Equal(t, `{"lang":"en"}`, msgs[1].Metadata)
}

func TestSQLArchiveUnknownSession(t *testing.T) {
	a := sqliteArchive(t)

	s, msgs, err := a.SessionWithMessages(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Empty(t, msgs)
}

func TestSQLArchiveClearAll(t *testing.T) {
	a := sqliteArchive(t)
	ctx := context.Background()

	_, err := a.AppendMessage(ctx, "s1", "user", "Q1", "")
	require.NoError(t, err)
	_, err = a.AppendMessage(ctx, "s2", "user", "Q2", "")
	require.NoError(t, err)

	require.NoError(t, a.ClearAll(ctx))
	listed, err := a.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}
