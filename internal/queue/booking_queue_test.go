package queue_test

import (
	"context"
	"testing"
	"time"

	"event-booking-api/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBookingQueue_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryBookingQueue(4)
	msg := newMessage("BK12345678MEMO")
	require.NoError(t, q.Publish(ctx, msg))

	delCh, err := q.Subscribe(ctx)
	require.NoError(t, err)

	select {
	case d := <-delCh:
		assert.Same(t, msg, d.Data)
		d.Ack()
	case <-ctx.Done():
		t.Fatal("timeout 未收到訊息")
	}
}

func TestMemoryBookingQueue_NackRequeue(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryBookingQueue(1)
	msg := newMessage("BK12345678AGIN")
	require.NoError(t, q.Publish(ctx, msg))

	delCh, err := q.Subscribe(ctx)
	require.NoError(t, err)

	first := <-delCh
	first.Nack(true)

	select {
	case d := <-delCh:
		assert.Same(t, msg, d.Data)
	case <-ctx.Done():
		t.Fatal("Nack(true) 後應重新投遞")
	}
}

func TestMemoryBookingQueue_PublishRespectsContext(t *testing.T) {
	q := queue.NewMemoryBookingQueue(1)
	require.NoError(t, q.Publish(context.Background(), newMessage("BK12345678FULL")))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := q.Publish(ctx, newMessage("BK12345678WAIT"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBookingQueue_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewMemoryBookingQueue(1)

	delCh, err := q.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-delCh:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("context 取消後 channel 應關閉")
	}
}
