package localcache

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfan-ai/irfan-backend/internal/repository"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cache, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func testSession(id, title string) repository.Session {
	return repository.Session{
		ID:           id,
		Title:        title,
		Preview:      title + " önizleme",
		CreatedAt:    time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
		MessageCount: 2,
	}
}

func testMessage(id, content string, msgType repository.MessageType) repository.Message {
	return repository.Message{
		ID:        id,
		Content:   content,
		Type:      msgType,
		CreatedAt: time.Date(2026, 8, 1, 10, 31, 0, 0, time.UTC),
	}
}

func TestLoadSessionsEmpty(t *testing.T) {
	cache := openTestCache(t)

	sessions, err := cache.LoadSessions("user-1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.NotNil(t, sessions)
}

func TestReplaceSessionsRoundTrip(t *testing.T) {
	cache := openTestCache(t)

	in := []repository.Session{testSession("s1", "Fatiha"), testSession("s2", "Dualar")}
	require.NoError(t, cache.ReplaceSessions("user-1", in))

	out, err := cache.LoadSessions("user-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "s1", out[0].ID)
	assert.Equal(t, "Fatiha", out[0].Title)
	assert.Equal(t, "user-1", out[0].UserID)
	assert.Equal(t, 2, out[0].MessageCount)
	assert.True(t, out[0].CreatedAt.Equal(in[0].CreatedAt))
}

func TestReplaceSessionsOverwritesNotMerges(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.ReplaceSessions("user-1", []repository.Session{
		testSession("old-1", "Eski"), testSession("old-2", "Eski 2"),
	}))
	require.NoError(t, cache.ReplaceSessions("user-1", []repository.Session{
		testSession("new-1", "Yeni"),
	}))

	out, err := cache.LoadSessions("user-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "new-1", out[0].ID)
}

func TestPrependSessionGoesToHead(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.ReplaceSessions("user-1", []repository.Session{testSession("s1", "İlk")}))
	require.NoError(t, cache.PrependSession("user-1", testSession("s2", "Yeni Sohbet")))

	out, err := cache.LoadSessions("user-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "s2", out[0].ID)
	assert.Equal(t, "s1", out[1].ID)
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.ReplaceSessions("user-1", []repository.Session{testSession("s1", "A")}))
	require.NoError(t, cache.ReplaceSessions("user-2", []repository.Session{testSession("s2", "B")}))

	out, err := cache.LoadSessions("user-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].ID)
}

func TestMessagesRoundTripPreservesOrder(t *testing.T) {
	cache := openTestCache(t)

	in := []repository.Message{
		testMessage("m1", "Fatiha suresinin meali nedir?", repository.MessageTypeUser),
		testMessage("m2", "Fatiha suresi, Kur'ân'ın ilk suresidir...", repository.MessageTypeAI),
	}
	require.NoError(t, cache.ReplaceMessages("user-1", "s1", in))

	out, err := cache.LoadMessages("user-1", "s1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, repository.MessageTypeUser, out[0].Type)
	assert.Equal(t, repository.MessageTypeAI, out[1].Type)
	assert.Equal(t, "s1", out[0].SessionID)
	assert.Equal(t, in[1].Content, out[1].Content)
}

func TestAppendMessageKeepsExisting(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.ReplaceMessages("user-1", "s1", []repository.Message{
		testMessage("m1", "soru", repository.MessageTypeUser),
	}))
	require.NoError(t, cache.AppendMessage("user-1", "s1", testMessage("m2", "cevap", repository.MessageTypeAI)))

	out, err := cache.LoadMessages("user-1", "s1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].ID)
	assert.Equal(t, "m2", out[1].ID)
}

func TestCorruptedTimestampRowStillServed(t *testing.T) {
	cache := openTestCache(t)

	_, err := cache.db.Exec(
		`INSERT INTO cached_sessions (user_id, position, id, title, preview, created_at, message_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"user-1", 0, "s1", "Bozuk", "", "not-a-timestamp", 0,
	)
	require.NoError(t, err)

	out, err := cache.LoadSessions("user-1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].ID)
	assert.True(t, out[0].CreatedAt.IsZero())
}

func TestMessagesAreIsolatedPerSession(t *testing.T) {
	cache := openTestCache(t)

	require.NoError(t, cache.AppendMessage("user-1", "s1", testMessage("m1", "bir", repository.MessageTypeUser)))
	require.NoError(t, cache.AppendMessage("user-1", "s2", testMessage("m2", "iki", repository.MessageTypeUser)))

	out, err := cache.LoadMessages("user-1", "s2")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "m2", out[0].ID)
}
