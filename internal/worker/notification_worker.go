package worker

import (
	"context"
	"fmt"
	"sync"

	"event-booking-api/internal/model"
	"event-booking-api/internal/queue"
	"event-booking-api/pkg/logger"

	"go.uber.org/zap"
)

// Notifier 將訂位事件通知使用者
type Notifier interface {
	Notify(ctx context.Context, msg *model.BookingMessage) error
}

// LogNotifier 以結構化日誌代替實際的 email / 推播
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.WithComponent("notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg *model.BookingMessage) error {
	if msg == nil || msg.Booking == nil {
		return fmt.Errorf("empty booking message")
	}
	b := msg.Booking
	n.log.Info("booking notification",
		zap.String("type", string(msg.Type)),
		zap.String("booking_id", b.ID.String()),
		zap.String("reference", b.Reference),
		zap.String("user_id", b.UserID.String()),
		zap.String("event_id", b.EventID.String()),
		zap.String("status", string(b.Status)),
		zap.Int("seats", b.NumberOfSeats),
		zap.Time("occurred_at", msg.OccurredAt),
	)
	return nil
}

type NotificationWorker interface {
	// 訂閱訂位事件並通知使用者；ctx 結束或隊列關閉時停止
	Start(ctx context.Context) error
	Wait()
}

type NotificationWorkerImpl struct {
	queue    queue.BookingQueue
	notifier Notifier
	wg       sync.WaitGroup
}

func NewNotificationWorker(queue queue.BookingQueue, notifier Notifier) NotificationWorker {
	return &NotificationWorkerImpl{
		queue:    queue,
		notifier: notifier,
	}
}

func (w *NotificationWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		log := logger.WithComponent("worker")
		for msg := range msgs {
			if err := w.notifier.Notify(ctx, msg.Data); err != nil {
				// 暫時性失敗，延遲重試
				log.Warn("notify failed, requeue", zap.Error(err))
				msg.Nack(true)
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

// Wait 等待消費迴圈結束
func (w *NotificationWorkerImpl) Wait() {
	w.wg.Wait()
}
