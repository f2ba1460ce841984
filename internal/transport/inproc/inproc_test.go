package inproc

import (
	"context"
	"errors"
	"testing"

	"github.com/danmuck/edgebus/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ transport.Factory = (*Hub)(nil)

func TestIngressCarriesSenderIdentity(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(8)

	ingress, err := hub.ListenIngress(ctx, "router")
	require.NoError(t, err)
	a, err := hub.DialSender(ctx, "router")
	require.NoError(t, err)
	b, err := hub.DialSender(ctx, "router")
	require.NoError(t, err)

	require.NoError(t, a.Send([]byte("from-a")))
	require.NoError(t, b.Send([]byte("from-b")))

	idA, err := ingress.RecvIdentity()
	require.NoError(t, err)
	payload, err := ingress.RecvPayload()
	require.NoError(t, err)
	assert.Equal(t, []byte("from-a"), payload)

	idB, err := ingress.RecvIdentity()
	require.NoError(t, err)
	_, err = ingress.RecvPayload()
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)

	_, err = ingress.RecvPayload()
	require.Error(t, err)
}

func TestListenTwiceFails(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(0)

	_, err := hub.ListenIngress(ctx, "router")
	require.NoError(t, err)
	_, err = hub.ListenIngress(ctx, "router")
	assert.True(t, errors.Is(err, ErrAddressInUse))

	_, err = hub.ListenPublisher(ctx, "pub")
	require.NoError(t, err)
	_, err = hub.ListenPublisher(ctx, "pub")
	assert.True(t, errors.Is(err, ErrAddressInUse))
}

func TestPublisherFansOutToAllReceivers(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(8)

	p0, err := hub.ListenPublisher(ctx, "pub-0")
	require.NoError(t, err)
	p1, err := hub.ListenPublisher(ctx, "pub-1")
	require.NoError(t, err)

	r1, err := hub.DialReceiver(ctx, []string{"pub-0", "pub-1"})
	require.NoError(t, err)
	r2, err := hub.DialReceiver(ctx, []string{"pub-0"})
	require.NoError(t, err)

	require.NoError(t, p0.Send([]byte("x")))
	require.NoError(t, p1.Send([]byte("y")))

	got, err := r1.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	got, err = r1.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), got)

	got, err = r2.Recv()
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestClosedRolesReturnErrClosed(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(1)

	ingress, err := hub.ListenIngress(ctx, "router")
	require.NoError(t, err)
	require.NoError(t, ingress.Close())
	_, err = ingress.RecvIdentity()
	assert.True(t, errors.Is(err, transport.ErrClosed))

	send, err := hub.DialSender(ctx, "router")
	require.NoError(t, err)
	require.NoError(t, send.Close())
	assert.True(t, errors.Is(send.Send([]byte("x")), transport.ErrClosed))

	recv, err := hub.DialReceiver(ctx, []string{"pub"})
	require.NoError(t, err)
	require.NoError(t, recv.Close())
	_, err = recv.Recv()
	assert.True(t, errors.Is(err, transport.ErrClosed))
}
