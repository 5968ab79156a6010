package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"event-booking-api/pkg/logger"
	"event-booking-api/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader  = "Idempotency-Key"
	IdempotencyReplayed   = "Idempotent-Replayed"
	idempotencyKeyPrefix  = "idempotency:"
	maxIdempotencyKeyLen  = 255
	defaultProcessingTTL  = 60 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

type IdempotencyStatus string

const (
	StatusProcessing IdempotencyStatus = "processing"
	StatusCompleted  IdempotencyStatus = "completed"
)

type IdempotencyRecord struct {
	Status       IdempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code,omitempty"`
	ResponseBody string            `json:"response_body,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// IdempotencyStore 只需要 go-redis 的這幾個指令
type IdempotencyStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type IdempotencyConfig struct {
	Store         IdempotencyStore
	TTL           time.Duration // completed 紀錄保存時間
	ProcessingTTL time.Duration // processing 紀錄保存時間
}

// Idempotency 處理可選的 Idempotency-Key 標頭；沒有標頭時直接放行。
// 必須在 RequireAuth 之後，key 以使用者為範圍。Redis 故障時放行 (fail open)。
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultIdempotencyTTL
	}
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = defaultProcessingTTL
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			response.BadRequest(c, "Idempotency-Key is too long")
			return
		}

		log := logger.WithComponent("idempotency")
		principal, _ := GetPrincipal(c)

		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				log.Warn("failed to read request body", zap.Error(err))
				response.BadRequest(c, "Invalid request body")
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		redisKey := idempotencyKeyPrefix + principal.UserID.String() + ":" + key
		requestHash := hashRequest(c.Request.Method, c.FullPath(), body)
		ctx := c.Request.Context()

		record := &IdempotencyRecord{
			Status:      StatusProcessing,
			RequestHash: requestHash,
			CreatedAt:   time.Now().UTC(),
		}
		acquired, err := setRecordNX(ctx, cfg.Store, redisKey, record, cfg.ProcessingTTL)
		if err != nil {
			log.Warn("idempotency store unavailable, continuing without it", zap.Error(err))
			c.Next()
			return
		}

		if !acquired {
			existing, err := getRecord(ctx, cfg.Store, redisKey)
			if err != nil {
				if errors.Is(err, redis.Nil) {
					// 紀錄剛好過期，視為處理中，請客戶端重試
					response.Fail(c, http.StatusConflict, "A request with this Idempotency-Key is being processed")
					return
				}
				log.Warn("idempotency record read failed, continuing without it", zap.Error(err))
				c.Next()
				return
			}
			replay(c, existing, requestHash)
			return
		}

		rw := &capturingWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = rw

		c.Next()

		storeCtx := context.WithoutCancel(ctx)
		status := rw.Status()
		if !cacheableStatus(status) {
			// 暫時性失敗不保存，讓客戶端用同一個 key 重試
			if err := cfg.Store.Del(storeCtx, redisKey).Err(); err != nil {
				log.Warn("failed to release idempotency record", zap.Error(err))
			}
			return
		}

		record.Status = StatusCompleted
		record.ResponseCode = status
		record.ResponseBody = rw.body.String()
		if err := setRecord(storeCtx, cfg.Store, redisKey, record, cfg.TTL); err != nil {
			log.Warn("failed to save idempotency record", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, existing *IdempotencyRecord, requestHash string) {
	if existing.RequestHash != requestHash {
		response.Fail(c, http.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request")
		return
	}
	if existing.Status == StatusProcessing {
		response.Fail(c, http.StatusConflict, "A request with this Idempotency-Key is being processed")
		return
	}
	c.Header(IdempotencyReplayed, "true")
	c.Data(existing.ResponseCode, "application/json; charset=utf-8", []byte(existing.ResponseBody))
	c.Abort()
}

// cacheableStatus 5xx 與可重試的 409/429 不保存
func cacheableStatus(status int) bool {
	if status >= 500 {
		return false
	}
	return status != http.StatusConflict && status != http.StatusTooManyRequests
}

func hashRequest(method, route string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(route))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func getRecord(ctx context.Context, store IdempotencyStore, key string) (*IdempotencyRecord, error) {
	raw, err := store.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var record IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func setRecordNX(ctx context.Context, store IdempotencyStore, key string, record *IdempotencyRecord, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, string(data), ttl).Result()
}

func setRecord(ctx context.Context, store IdempotencyStore, key string, record *IdempotencyRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(data), ttl).Err()
}

type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
