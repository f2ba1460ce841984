package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/edgebus/internal/config"
	"github.com/danmuck/edgebus/internal/testutil/testlog"
	"github.com/danmuck/edgebus/internal/transport"
	"github.com/danmuck/edgebus/internal/transport/inproc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedFrame struct {
	identityErr error
	payload     []byte
	payloadErr  error
}

type scriptedIngress struct {
	mu     sync.Mutex
	frames []scriptedFrame
	cur    *scriptedFrame
	reads  int
}

func (s *scriptedIngress) RecvIdentity() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.frames) == 0 {
		return nil, transport.ErrClosed
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	s.cur = &f
	return []byte("id"), nil
}

func (s *scriptedIngress) RecvPayload() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.cur
	s.cur = nil
	if f.payloadErr != nil {
		return nil, f.payloadErr
	}
	return f.payload, nil
}

func (s *scriptedIngress) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func TestStepForwardsVerbatim(t *testing.T) {
	testlog.Start(t)
	pool, recs := newTestPool(t, 2)
	in := &scriptedIngress{frames: []scriptedFrame{{payload: []byte{0xde, 0xad}}}}
	d := NewDispatcher(in, pool, 10)

	require.NoError(t, d.Step())
	assert.Equal(t, [][]byte{{0xde, 0xad}}, recs[0].Sent())
	assert.Empty(t, recs[1].Sent())
	assert.EqualValues(t, 1, d.Processed())
}

func TestStepPrefersRetryQueue(t *testing.T) {
	testlog.Start(t)
	pool, recs := newTestPool(t, 2)
	in := &scriptedIngress{frames: []scriptedFrame{{payload: []byte("fresh")}}}
	d := NewDispatcher(in, pool, 10)

	pool.Retry().Push([]byte("retry-a"))
	pool.Retry().Push([]byte("retry-b"))

	require.NoError(t, d.Step())
	require.NoError(t, d.Step())
	assert.Zero(t, in.Reads())

	require.NoError(t, d.Step())
	assert.Equal(t, 1, in.Reads())

	assert.Equal(t, [][]byte{[]byte("retry-a"), []byte("fresh")}, recs[0].Sent())
	assert.Equal(t, [][]byte{[]byte("retry-b")}, recs[1].Sent())
}

func TestStepFailedSendIsRetriedOnNextStep(t *testing.T) {
	testlog.Start(t)
	pool, recs := newTestPool(t, 2)
	recs[0].setFail(errors.New("down"))
	in := &scriptedIngress{frames: []scriptedFrame{{payload: []byte("m")}}}
	d := NewDispatcher(in, pool, 10)

	var sendErr *SendError
	require.ErrorAs(t, d.Step(), &sendErr)
	require.NoError(t, d.Step())

	assert.Equal(t, 1, in.Reads())
	assert.Equal(t, [][]byte{[]byte("m")}, recs[1].Sent())
	assert.Zero(t, pool.Retry().Len())
	assert.EqualValues(t, 2, d.Processed())
}

func TestStepDropsOnFrameFailure(t *testing.T) {
	testlog.Start(t)
	pool, recs := newTestPool(t, 1)
	in := &scriptedIngress{frames: []scriptedFrame{
		{identityErr: errors.New("no identity")},
		{payloadErr: errors.New("no payload")},
		{payload: []byte("ok")},
	}}
	d := NewDispatcher(in, pool, 10)

	assert.ErrorIs(t, d.Step(), ErrIdentityFrame)
	assert.ErrorIs(t, d.Step(), ErrPayloadFrame)
	require.NoError(t, d.Step())

	assert.Equal(t, [][]byte{[]byte("ok")}, recs[0].Sent())
	assert.Zero(t, pool.Retry().Len())
	assert.EqualValues(t, 1, d.Processed())
}

func TestRunStopsWhenIngressCloses(t *testing.T) {
	testlog.Start(t)
	pool, recs := newTestPool(t, 2)
	in := &scriptedIngress{frames: []scriptedFrame{
		{payload: []byte("a")},
		{identityErr: errors.New("transient")},
		{payload: []byte("b")},
	}}
	d := NewDispatcher(in, pool, 1)

	err := d.Run(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.Len(t, recs[0].Sent(), 1)
	assert.Len(t, recs[1].Sent(), 1)
}

func TestRunSurvivesClosedPublisher(t *testing.T) {
	testlog.Start(t)
	pool, recs := newTestPool(t, 2)
	recs[0].setFail(fmt.Errorf("nats publish: %w", transport.ErrClosed))

	frames := make([]scriptedFrame, 10)
	for i := range frames {
		frames[i] = scriptedFrame{payload: []byte{byte(i)}}
	}
	in := &scriptedIngress{frames: frames}
	d := NewDispatcher(in, pool, 1)

	err := d.Run(context.Background())
	assert.ErrorIs(t, err, ErrIdentityFrame)
	assert.ErrorIs(t, err, transport.ErrClosed)

	assert.Equal(t, 11, in.Reads())
	assert.Len(t, recs[1].Sent(), 10)
	assert.Zero(t, pool.Retry().Len())
}

func TestRunReturnsNilOnCancel(t *testing.T) {
	testlog.Start(t)
	pool, _ := newTestPool(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDispatcher(&scriptedIngress{}, pool, 0)
	assert.NoError(t, d.Run(ctx))
}

func TestServiceForwardsOverInproc(t *testing.T) {
	testlog.Start(t)
	hub := inproc.NewHub(16)
	cfg := config.Default()
	cfg.Node = "bus-test"
	cfg.RouterAddr = "router"
	cfg.PublisherAddrs = []string{"pub-0", "pub-1", "pub-2"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Receivers must be dialed before publishing.
	recv, err := hub.DialReceiver(ctx, cfg.PublisherAddrs)
	require.NoError(t, err)
	send, err := hub.DialSender(ctx, cfg.RouterAddr)
	require.NoError(t, err)

	svc := NewService(cfg, hub)
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	for _, m := range []string{"one", "two", "three", "four"} {
		require.NoError(t, send.Send([]byte(m)))
	}
	got := make([]string, 0, 4)
	for len(got) < 4 {
		b, err := recv.Recv()
		require.NoError(t, err)
		got = append(got, string(b))
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, got)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bus service did not stop")
	}
}

func TestServiceStatusReportsSlots(t *testing.T) {
	testlog.Start(t)
	pool, recs := newTestPool(t, 2)
	recs[1].setFail(errors.New("down"))
	require.NoError(t, pool.Dispatch([]byte("a")))
	require.Error(t, pool.Dispatch([]byte("b")))

	svc := &Service{pool: pool, dispatcher: NewDispatcher(&scriptedIngress{}, pool, 0)}
	status := svc.status()

	assert.Equal(t, "bus", status["role"])
	assert.Equal(t, 2, status["publishers"])
	assert.Equal(t, 1, status["retry_depth"])
	assert.Equal(t, []int64{1, 2}, status["last_action_ms"])
}
