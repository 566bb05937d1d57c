package pubsub

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const testProject = "bikes-test"

func newTestPublisher(t *testing.T) (*Publisher, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	pub, err := NewPublisher(context.Background(), testProject,
		slog.New(slog.NewTextHandler(io.Discard, nil)), option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	return pub, srv
}

func TestPublish_DeliversPayloadAndAttributes(t *testing.T) {
	pub, srv := newTestPublisher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := pub.client.CreateTopic(ctx, "bikes-loaded")
	require.NoError(t, err)

	attrs := map[string]string{"pipeline": "blob", "run_id": "r-1", "outcome": "success"}
	require.NoError(t, pub.Publish(ctx, "bikes-loaded", []byte("Follow-up processing triggered"), attrs))

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Follow-up processing triggered", string(msgs[0].Data))
	assert.Equal(t, attrs, msgs[0].Attributes)
}

func TestPublish_MissingTopicFails(t *testing.T) {
	pub, srv := newTestPublisher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := pub.Publish(ctx, "nope", []byte("x"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Empty(t, srv.Messages())
}
