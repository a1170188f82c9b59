package notify

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"claimdesk/internal/notify/mocks"
	"claimdesk/pkg/requestcontext"
)

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), "jane.doe@acme.test", "Claim assigned", "CLM-0001-0002-0003"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification", entry["log_type"])
	assert.Equal(t, "jane.doe@acme.test", entry["to"])
	assert.Equal(t, "Hi Jane Doe,", entry["greeting"])
}

func TestKafkaNotifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockPublisher(ctrl)
	n := NewKafkaNotifier(pub, "claimdesk.notifications")
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	t.Run("publishes a keyed JSON record", func(t *testing.T) {
		pub.EXPECT().Publish(ctx, "claimdesk.notifications", []byte("ops@acme.test"), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _, value []byte) error {
				var msg Message
				require.NoError(t, json.Unmarshal(value, &msg))
				assert.Equal(t, "Registration received", msg.Subject)
				assert.Equal(t, "Hi Ops,", msg.Greeting)
				assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), msg.SentAt)
				return nil
			})
		assert.NoError(t, n.Notify(ctx, "ops@acme.test", "Registration received", "body"))
	})

	t.Run("returns publish errors", func(t *testing.T) {
		pub.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("no leader"))
		assert.Error(t, n.Notify(ctx, "ops@acme.test", "s", "b"))
	})
}
