package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/regrant/regrant-auth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishLogin(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, LoginTopic)
	require.NoError(t, err)

	event := core.LoginEvent{
		UserID:        "8b0c1f7e-7c5e-4a53-9b8e-9d1f1f6b2d11",
		WalletAddress: "0x1111111111111111111111111111111111111111",
		NewUser:       true,
		At:            time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewWatermillPublisher(pubSub).PublishLogin(ctx, event))

	select {
	case msg := <-messages:
		var got core.LoginEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, event, got)
		assert.Equal(t, event.WalletAddress, msg.Metadata.Get("wallet_address"))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("login event not delivered")
	}
}
