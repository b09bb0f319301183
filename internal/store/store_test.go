package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haleyos/haley/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "haley.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func chatMessages() []model.Message {
	ts := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	return []model.Message{
		{ID: "s1", Role: model.RoleSystem, Content: "be brief", Timestamp: ts},
		{ID: "u1", Role: model.RoleUser, Content: "How do I build a habit tracker?", Status: model.StatusDone, Timestamp: ts},
		{
			ID: "a1", Role: model.RoleAssistant, Content: "Start small.", Status: model.StatusDone, Timestamp: ts.Add(time.Second),
			Metadata: &model.MessageMetadata{ModelUsed: "gpt", Confidence: 0.9},
		},
	}
}

func TestSaveAndLoadChat(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, "u", "c1", chatMessages(), "multi"))

	got, err := s.LoadChat(ctx, "u", "c1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "u1", got[1].ID)
	assert.Equal(t, model.StatusDone, got[1].Status)
	assert.Nil(t, got[1].Metadata)
	require.NotNil(t, got[2].Metadata)
	assert.Equal(t, "gpt", got[2].Metadata.ModelUsed)
	assert.True(t, got[2].Timestamp.Equal(chatMessages()[2].Timestamp))

	chats, err := s.LoadAllChats(ctx, "u")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "How do I build a habit tracker?", chats[0].Title)
	assert.Equal(t, 2, chats[0].MessageCount)
	assert.Equal(t, "Start small.", chats[0].LastMessage)
	assert.Equal(t, "multi", chats[0].ModelMode)
}

func TestSaveChat_PreservesCreation(t *testing.T) {
	s, now := openTestStore(t)
	ctx := context.Background()

	created := *now
	require.NoError(t, s.SaveChat(ctx, "u", "c1", chatMessages()[:2], ""))

	*now = now.Add(time.Hour)
	require.NoError(t, s.SaveChat(ctx, "u", "c1", chatMessages(), ""))

	chats, err := s.LoadAllChats(ctx, "u")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.True(t, chats[0].Timestamp.Equal(created))
	assert.True(t, chats[0].LastActive.Equal(*now))
	assert.Equal(t, "", chats[0].ModelMode)

	got, err := s.LoadChat(ctx, "u", "c1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestLoadAllChats_OrderAndIsolation(t *testing.T) {
	s, now := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, "u", "old", chatMessages(), ""))
	*now = now.Add(time.Minute)
	require.NoError(t, s.SaveChat(ctx, "u", "new", nil, ""))
	require.NoError(t, s.SaveChat(ctx, "other", "x", chatMessages(), ""))

	chats, err := s.LoadAllChats(ctx, "u")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "new", chats[0].ID)
	assert.Equal(t, "New Chat", chats[0].Title)
	assert.Equal(t, "", chats[0].LastMessage)
	assert.Equal(t, "old", chats[1].ID)

	empty, err := s.LoadAllChats(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoadChat_NotFound(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.LoadChat(context.Background(), "u", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteChat(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, "u", "c1", chatMessages(), ""))
	require.NoError(t, s.DeleteChat(ctx, "u", "c1"))
	require.NoError(t, s.DeleteChat(ctx, "u", "c1"))

	_, err := s.LoadChat(ctx, "u", "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRequired(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.SaveChat(ctx, "", "c1", nil, ""), ErrUserRequired)
	_, err := s.LoadChat(ctx, "", "c1")
	assert.ErrorIs(t, err, ErrUserRequired)
	_, err = s.LoadAllChats(ctx, "")
	assert.ErrorIs(t, err, ErrUserRequired)
	assert.ErrorIs(t, s.DeleteChat(ctx, "", "c1"), ErrUserRequired)
}

func TestTitle(t *testing.T) {
	long := strings.Repeat("é", 55)
	tests := []struct {
		name     string
		messages []model.Message
		want     string
	}{
		{"no user message", []model.Message{{Role: model.RoleAssistant, Content: "hi"}}, "New Chat"},
		{"short", []model.Message{{Role: model.RoleUser, Content: "hello"}}, "hello"},
		{"exactly fifty", []model.Message{{Role: model.RoleUser, Content: strings.Repeat("a", 50)}}, strings.Repeat("a", 50)},
		{"long", []model.Message{{Role: model.RoleUser, Content: long}}, strings.Repeat("é", 50) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.messages))
		})
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "Just now"},
		{5 * time.Minute, "5 min ago"},
		{time.Hour, "1 hour ago"},
		{3 * time.Hour, "3 hours ago"},
		{25 * time.Hour, "Yesterday"},
		{3 * 24 * time.Hour, "3 days ago"},
		{8 * 24 * time.Hour, "1 week ago"},
		{15 * 24 * time.Hour, "2 weeks ago"},
		{40 * 24 * time.Hour, "2/19/2026"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRelativeTime(now, now.Add(-tt.ago)))
		})
	}
}
