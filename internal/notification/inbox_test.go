package notification_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmpush/swarmpush/internal/notification"
)

func TestInbox_LatestWins(t *testing.T) {
	inbox := notification.NewInbox()

	_, ok := inbox.Latest()
	assert.False(t, ok)

	first := notification.Event{Request: notification.Request{Content: notification.Content{Title: "one"}}}
	second := notification.Event{Request: notification.Request{Content: notification.Content{Title: "two", Body: "b"}}}

	_, err := inbox.Record(first)
	require.NoError(t, err)
	stored, err := inbox.Record(second)
	require.NoError(t, err)
	assert.False(t, stored.ReceivedAt.IsZero())

	latest, ok := inbox.Latest()
	require.True(t, ok)
	assert.Equal(t, "two", latest.Request.Content.Title)
	assert.Equal(t, "b", latest.Request.Content.Body)
}

func TestInbox_KeepsGivenTimestamp(t *testing.T) {
	inbox := notification.NewInbox()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	stored, err := inbox.Record(notification.Event{
		Request:    notification.Request{Content: notification.Content{Body: "x"}},
		ReceivedAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, at, stored.ReceivedAt)
}

func TestInbox_RejectsEmpty(t *testing.T) {
	_, err := notification.NewInbox().Record(notification.Event{})
	assert.ErrorIs(t, err, notification.ErrEmptyContent)
}

func TestEvent_JSONShape(t *testing.T) {
	var ev notification.Event
	require.NoError(t, json.Unmarshal([]byte(`{"request":{"content":{"title":"Hi","body":"there"}}}`), &ev))
	assert.Equal(t, "Hi", ev.Request.Content.Title)
	assert.Equal(t, "there", ev.Request.Content.Body)
}
