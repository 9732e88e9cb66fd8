package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance-monitor/internal/chat"
	"attendance-monitor/internal/clock"
	"attendance-monitor/internal/core"
	"attendance-monitor/internal/database/dbtest"
)

func newService(t *testing.T) (*chat.Service, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return chat.NewService(dbtest.New(t), fake, nil), fake
}

func send(t *testing.T, svc *chat.Service, req chat.SendRequest) uint {
	t.Helper()
	msg, err := svc.Send(context.Background(), req)
	require.NoError(t, err)
	return msg.ID
}

func TestSendDefaultsConversation(t *testing.T) {
	svc, _ := newService(t)

	msg, err := svc.Send(context.Background(), chat.SendRequest{DeviceID: "D1", Sender: "alice", Message: "hi", IsFromDesktop: true})
	require.NoError(t, err)
	assert.Equal(t, "D1", msg.ConversationID)
	assert.False(t, msg.Read)

	_, err = svc.Send(context.Background(), chat.SendRequest{DeviceID: "D1"})
	assert.EqualError(t, err, "sender and message required")
}

func TestMessagesPaging(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	var ids []uint
	for _, text := range []string{"one", "two", "three", "four"} {
		ids = append(ids, send(t, svc, chat.SendRequest{DeviceID: "D1", Sender: "alice", Message: text}))
		fake.Advance(time.Second)
	}
	send(t, svc, chat.SendRequest{DeviceID: "ADMIN", RecipientID: "D1", Sender: "admin", Message: "reply", ConversationID: "D1"})
	send(t, svc, chat.SendRequest{DeviceID: "D2", Sender: "bob", Message: "elsewhere"})

	latest, err := svc.Messages(ctx, "D1", "", 2, 0)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "four", latest[0].Message)
	assert.Equal(t, "reply", latest[1].Message)

	older, err := svc.Messages(ctx, "D1", "", 2, 2)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, ids[1], older[0].ID)
	assert.Equal(t, ids[2], older[1].ID)

	_, err = svc.Messages(ctx, "", "", 0, 0)
	assert.True(t, core.IsValidation(err))
}

func TestConversationsAndMarkRead(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	first := send(t, svc, chat.SendRequest{DeviceID: "D1", Sender: "alice", Message: "hello"})
	fake.Advance(time.Minute)
	send(t, svc, chat.SendRequest{DeviceID: "D1", Sender: "alice", Message: "side topic", ConversationID: "topic"})
	fake.Advance(time.Minute)
	send(t, svc, chat.SendRequest{DeviceID: "ADMIN", RecipientID: "D1", Sender: "admin", Message: "hey", ConversationID: "D1"})

	convs, err := svc.Conversations(ctx, "D1")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "D1", convs[0].ConversationID)
	assert.Equal(t, "hey", convs[0].LastMessage)
	assert.Equal(t, "admin", convs[0].LastSender)
	assert.Equal(t, 2, convs[0].MessageCount)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, "topic", convs[1].ConversationID)

	n, err := svc.MarkRead(ctx, []uint{first})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	convs, err = svc.Conversations(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, 1, convs[0].UnreadCount)

	_, err = svc.MarkRead(ctx, nil)
	assert.True(t, core.IsValidation(err))
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	id := send(t, svc, chat.SendRequest{DeviceID: "D1", Sender: "alice", Message: "oops"})
	require.NoError(t, svc.Delete(ctx, id))
	assert.True(t, core.IsNotFound(svc.Delete(ctx, id)))
}
