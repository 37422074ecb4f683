package mailer

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSender_Send(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sender := NewLogSender(logger)

	err := sender.Send(context.Background(), Message{
		ToEmail:  "asha@example.com",
		Subject:  "Booking confirmed",
		CustomID: "TB-20261018-ABC123",
	})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "asha@example.com", entry.Data["to"])
	assert.Equal(t, "TB-20261018-ABC123", entry.Data["custom_id"])
}

func TestMailjetSender_CancelledContext(t *testing.T) {
	sender := NewMailjetSender("public", "private", "bookings@example.com", "Bookings", logrus.New())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, Message{ToEmail: "asha@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}
