package queue

import (
	"context"

	"event-booking-api/internal/model"
)

type Delivery struct {
	Data *model.BookingMessage
	Ack  func()
	Nack func(requeue bool)
}

type BookingQueue interface {
	// 發送訂位事件到隊列
	Publish(ctx context.Context, msg *model.BookingMessage) error
	// 訂閱訂位事件
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

type MemoryBookingQueue struct {
	// 使用 Go channel 來模擬 MQ 隊列
	ch chan *model.BookingMessage
}

func NewMemoryBookingQueue(bufferSize int) BookingQueue {
	return &MemoryBookingQueue{
		ch: make(chan *model.BookingMessage, bufferSize),
	}
}

func (q *MemoryBookingQueue) Publish(ctx context.Context, msg *model.BookingMessage) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryBookingQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-q.ch:
				if !ok {
					return
				}

				d := Delivery{
					Data: msg,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if requeue {
							// 重回隊列，不阻塞消費者
							go func() {
								select {
								case q.ch <- msg:
								case <-ctx.Done():
								}
							}()
						}
					},
				}

				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
