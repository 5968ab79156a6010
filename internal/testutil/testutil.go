package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"event-booking-api/config"
	"event-booking-api/internal/database"
	"event-booking-api/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var (
	migrateOnce sync.Once
	migrateErr  error
)

// Setup 連線測試用 Postgres 與 Redis 並套用 migration
func Setup() (*pgxpool.Pool, *redis.Client, func(), error) {
	cfg := config.LoadTestConfig()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize test database: %w", err)
	}

	migrateOnce.Do(func() {
		migrateErr = database.MigrateUp(cfg.Database.MigrationURL())
	})
	if migrateErr != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate test database: %w", migrateErr)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	cleanup := func() {
		pool.Close()
		_ = rdb.Close()
	}
	return pool, rdb, cleanup, nil
}

// SetupDBOnly 僅初始化 Postgres，用於 repository / service 整合測試
func SetupDBOnly() (*pgxpool.Pool, func(), error) {
	cfg := config.LoadTestConfig()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize test database: %w", err)
	}

	migrateOnce.Do(func() {
		migrateErr = database.MigrateUp(cfg.Database.MigrationURL())
	})
	if migrateErr != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate test database: %w", migrateErr)
	}

	return pool, pool.Close, nil
}

// SetupRedisOnly 僅初始化 Redis，用於只依賴 Redis 的測試（如 queue 整合測試）
func SetupRedisOnly() (*redis.Client, func(), error) {
	cfg := config.LoadTestConfig()
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	cleanup := func() { _ = rdb.Close() }
	return rdb, cleanup, nil
}

// RequireDB 沒有可用的測試資料庫時略過測試
func RequireDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if pool == nil {
		t.Skip("test database unavailable")
	}
}

// RequireRedis 沒有可用的測試 Redis 時略過測試
func RequireRedis(t *testing.T, rdb *redis.Client) {
	t.Helper()
	if rdb == nil {
		t.Skip("test redis unavailable")
	}
}

// Truncate 清空所有測試資料，保留 schema
func Truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), "TRUNCATE bookings, events, users CASCADE"); err != nil {
		t.Fatalf("Failed to truncate tables: %v", err)
	}
}

func CreateUser(t *testing.T, pool *pgxpool.Pool, email string, role model.Role) *model.User {
	t.Helper()

	user := &model.User{FirstName: "Test", LastName: "User", Email: email, Role: role, IsActive: true}
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (first_name, last_name, email, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		user.FirstName, user.LastName, user.Email, user.Role, user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// EventFixture 測試活動的可調整欄位
type EventFixture struct {
	Title       string
	EventDate   time.Time
	TotalSeats  int
	Available   int
	TicketPrice float64
	Status      model.EventStatus
}

func CreateEvent(t *testing.T, pool *pgxpool.Pool, createdBy uuid.UUID, f EventFixture) *model.Event {
	t.Helper()

	if f.Title == "" {
		f.Title = "Test Event"
	}
	if f.EventDate.IsZero() {
		f.EventDate = time.Now().UTC().Add(7 * 24 * time.Hour)
	}
	if f.TotalSeats == 0 {
		f.TotalSeats = 100
	}
	if f.Available == 0 {
		f.Available = f.TotalSeats
	}
	if f.Status == "" {
		f.Status = model.EventStatusActive
	}

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO events (title, description, venue, event_date, total_seats, available_seats,
			ticket_price, category, status, created_by)
		VALUES ($1, 'An event used by tests', 'Main Hall', $2, $3, $4, $5, 'conference', $6, $7)
		RETURNING id`,
		f.Title, f.EventDate, f.TotalSeats, f.Available, f.TicketPrice, f.Status, createdBy,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test event: %v", err)
	}

	event := &model.Event{}
	err = pool.QueryRow(context.Background(), `
		SELECT id, total_seats, available_seats, ticket_price, status, event_date, updated_at
		FROM events WHERE id = $1`, id,
	).Scan(&event.ID, &event.TotalSeats, &event.AvailableSeats, &event.TicketPrice, &event.Status, &event.EventDate, &event.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to load test event: %v", err)
	}
	event.Title = f.Title
	event.CreatedBy = createdBy
	return event
}

// AvailableSeats 直接讀取資料庫中的剩餘座位
func AvailableSeats(t *testing.T, pool *pgxpool.Pool, eventID uuid.UUID) int {
	t.Helper()
	var seats int
	if err := pool.QueryRow(context.Background(), `SELECT available_seats FROM events WHERE id = $1`, eventID).Scan(&seats); err != nil {
		t.Fatalf("Failed to read available seats: %v", err)
	}
	return seats
}
