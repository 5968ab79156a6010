package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-booking-api/internal/model"
	"event-booking-api/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StreamKey          = "bookings:stream"
	ConsumerGroupName  = "booking-notifiers"
	ConsumerNamePrefix = "notifier"

	// stream 大約保留的訊息數，XADD 時以 MAXLEN ~ 修剪
	streamMaxLen = 100_000
	readBatch    = 10
)

// 每筆 stream entry 的欄位。type 與索引欄位獨立存放，方便 XRANGE 直接檢視
const (
	fieldType       = "type"
	fieldBookingID  = "booking_id"
	fieldEventID    = "event_id"
	fieldReference  = "reference"
	fieldOccurredAt = "occurred_at"
	fieldBooking    = "booking"
)

var (
	errUnknownMessageType = errors.New("unknown booking message type")
	errMissingBooking     = errors.New("booking message without booking")
)

// RedisStreamConfig 可注入的逾時與重試設定；零值欄位使用預設。
type RedisStreamConfig struct {
	ClaimMinIdleTime   time.Duration // 未 ack 超過此時間才重新領取
	MaxRetryCount      int           // 投遞次數上限，超過即丟棄
	ReadGroupBlockTime time.Duration // XReadGroup 阻塞時間
}

func defaultRedisStreamConfig() RedisStreamConfig {
	return RedisStreamConfig{
		ClaimMinIdleTime:   5 * time.Second,
		MaxRetryCount:      5,
		ReadGroupBlockTime: 2 * time.Second,
	}
}

func (c *RedisStreamConfig) merge(override *RedisStreamConfig) {
	if override == nil {
		return
	}
	if override.ClaimMinIdleTime > 0 {
		c.ClaimMinIdleTime = override.ClaimMinIdleTime
	}
	if override.MaxRetryCount > 0 {
		c.MaxRetryCount = override.MaxRetryCount
	}
	if override.ReadGroupBlockTime > 0 {
		c.ReadGroupBlockTime = override.ReadGroupBlockTime
	}
}

// RedisStreamBookingQueue 以 consumer group 分送訂位事件給通知 worker。
// 未 ack 的事件留在 PEL，閒置超過 ClaimMinIdleTime 後由 XAUTOCLAIM 重新投遞。
type RedisStreamBookingQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	cfg      RedisStreamConfig
	log      *zap.Logger
}

// NewRedisStreamBookingQueue 建立 consumer group（已存在則沿用）。config 可為 nil。
func NewRedisStreamBookingQueue(ctx context.Context, client *redis.Client, consumerID string, config *RedisStreamConfig) (BookingQueue, error) {
	if consumerID == "" {
		consumerID = uuid.New().String()
	}
	cfg := defaultRedisStreamConfig()
	cfg.merge(config)

	q := &RedisStreamBookingQueue{
		client:   client,
		stream:   StreamKey,
		group:    ConsumerGroupName,
		consumer: ConsumerNamePrefix + ":" + consumerID,
		cfg:      cfg,
		log:      logger.WithComponent("booking_stream"),
	}

	err := client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group %s: %w", q.group, err)
	}
	return q, nil
}

func (q *RedisStreamBookingQueue) Publish(ctx context.Context, msg *model.BookingMessage) error {
	values, err := encodeEntry(msg)
	if err != nil {
		return err
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", msg.Type, err)
	}
	return nil
}

// Subscribe 同時跑兩個來源：新訊息（XREADGROUP >）與逾時未 ack 的訊息（XAUTOCLAIM）。
// ctx 結束後兩者都停止才關閉 channel。
func (q *RedisStreamBookingQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		claimed := make(chan struct{})
		go func() {
			defer close(claimed)
			q.claimLoop(ctx, out)
		}()
		q.readLoop(ctx, out)
		<-claimed
	}()
	return out, nil
}

func (q *RedisStreamBookingQueue) readLoop(ctx context.Context, out chan<- Delivery) {
	for ctx.Err() == nil {
		entries, err := q.readNew(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("XReadGroup failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}
		if !q.dispatch(ctx, out, entries, false) {
			return
		}
	}
}

func (q *RedisStreamBookingQueue) readNew(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    readBatch,
		Block:    q.cfg.ReadGroupBlockTime,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []redis.XMessage
	for _, s := range streams {
		if s.Stream == q.stream {
			entries = append(entries, s.Messages...)
		}
	}
	return entries, nil
}

func (q *RedisStreamBookingQueue) claimLoop(ctx context.Context, out chan<- Delivery) {
	ticker := time.NewTicker(q.cfg.ClaimMinIdleTime)
	defer ticker.Stop()
	cursor := "0-0"

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		entries, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: q.consumer,
			MinIdle:  q.cfg.ClaimMinIdleTime,
			Count:    readBatch,
			Start:    cursor,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return
			}
			q.log.Error("XAutoClaim failed", zap.Error(err))
			continue
		}

		// 掃完一輪後從頭開始
		cursor = next
		if cursor == "" {
			cursor = "0-0"
		}

		if !q.dispatch(ctx, out, entries, true) {
			return
		}
	}
}

// dispatch 解碼並送出一批 entry；ctx 結束時回傳 false。
// 重新領取的 entry 先檢查投遞次數，避免同一筆事件無限重試。
func (q *RedisStreamBookingQueue) dispatch(ctx context.Context, out chan<- Delivery, entries []redis.XMessage, redelivered bool) bool {
	for _, entry := range entries {
		if redelivered && q.exhausted(ctx, entry.ID) {
			continue
		}

		msg, err := decodeEntry(entry.Values)
		if err != nil {
			q.discard(ctx, entry.ID, "undecodable booking message", zap.Error(err))
			continue
		}

		select {
		case out <- q.delivery(ctx, entry.ID, msg):
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (q *RedisStreamBookingQueue) exhausted(ctx context.Context, id string) bool {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		q.log.Warn("XPending failed", zap.String("message_id", id), zap.Error(err))
		return false
	}
	if len(pending) == 0 || int(pending[0].RetryCount) < q.cfg.MaxRetryCount {
		return false
	}

	q.discard(ctx, id, "booking message exceeded retries",
		zap.Int64("deliveries", pending[0].RetryCount),
		zap.Int("max_retries", q.cfg.MaxRetryCount),
	)
	return true
}

// discard ack 掉無法處理的 entry，讓它離開 PEL
func (q *RedisStreamBookingQueue) discard(ctx context.Context, id, reason string, fields ...zap.Field) {
	q.log.Warn(reason, append(fields, zap.String("message_id", id))...)
	if err := q.client.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		q.log.Error("XAck failed", zap.String("message_id", id), zap.Error(err))
	}
}

func (q *RedisStreamBookingQueue) delivery(ctx context.Context, id string, msg *model.BookingMessage) Delivery {
	log := q.log.With(
		zap.String("message_id", id),
		zap.String("type", string(msg.Type)),
		zap.String("booking_reference", msg.Booking.Reference),
	)
	ack := func() {
		if err := q.client.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
			log.Error("XAck failed", zap.Error(err))
		}
	}

	return Delivery{
		Data: msg,
		Ack:  ack,
		Nack: func(requeue bool) {
			if !requeue {
				ack()
				return
			}
			// 留在 PEL，閒置 ClaimMinIdleTime 後由 claimLoop 重新投遞
			log.Info("booking message will be retried", zap.Duration("after", q.cfg.ClaimMinIdleTime))
		},
	}
}

func encodeEntry(msg *model.BookingMessage) (map[string]interface{}, error) {
	if msg == nil || msg.Booking == nil {
		return nil, errMissingBooking
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", errUnknownMessageType, msg.Type)
	}

	booking, err := json.Marshal(msg.Booking)
	if err != nil {
		return nil, fmt.Errorf("marshal booking %s: %w", msg.Booking.Reference, err)
	}
	return map[string]interface{}{
		fieldType:       string(msg.Type),
		fieldBookingID:  msg.Booking.ID.String(),
		fieldEventID:    msg.Booking.EventID.String(),
		fieldReference:  msg.Booking.Reference,
		fieldOccurredAt: msg.OccurredAt.UTC().Format(time.RFC3339Nano),
		fieldBooking:    string(booking),
	}, nil
}

// decodeEntry 依 type 欄位還原訂位事件；未知的 type 視為無法處理
func decodeEntry(values map[string]interface{}) (*model.BookingMessage, error) {
	kind, _ := values[fieldType].(string)
	msgType := model.BookingMessageType(kind)
	if !msgType.IsValid() {
		return nil, fmt.Errorf("%w: %q", errUnknownMessageType, kind)
	}

	raw, ok := values[fieldBooking].(string)
	if !ok {
		return nil, errMissingBooking
	}
	var booking model.Booking
	if err := json.Unmarshal([]byte(raw), &booking); err != nil {
		return nil, fmt.Errorf("unmarshal booking: %w", err)
	}

	msg := &model.BookingMessage{Type: msgType, Booking: &booking}
	if ts, ok := values[fieldOccurredAt].(string); ok {
		occurredAt, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", fieldOccurredAt, err)
		}
		msg.OccurredAt = occurredAt
	}
	return msg, nil
}
