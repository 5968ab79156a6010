package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error)

	// Transaction methods
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Event, error)
	DecrementSeats(ctx context.Context, tx pgx.Tx, id uuid.UUID, seats int) (*model.Event, error)
	IncrementSeats(ctx context.Context, tx pgx.Tx, id uuid.UUID, seats int) (*model.Event, error)
	Update(ctx context.Context, tx pgx.Tx, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error)
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type EventRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &EventRepositoryImpl{
		pool: pool,
	}
}

const eventColumns = `id, title, description, venue, event_date, total_seats, available_seats,
	ticket_price, category, status, image_url, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Venue,
		&event.EventDate,
		&event.TotalSeats,
		&event.AvailableSeats,
		&event.TicketPrice,
		&event.Category,
		&event.Status,
		&event.ImageURL,
		&event.CreatedBy,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *EventRepositoryImpl) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	query := `
		INSERT INTO events (
			title, description, venue, event_date, total_seats, available_seats,
			ticket_price, category, status, image_url, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + eventColumns

	created, err := scanEvent(r.pool.QueryRow(ctx, query,
		event.Title, event.Description, event.Venue, event.EventDate,
		event.TotalSeats, event.AvailableSeats, event.TicketPrice,
		event.Category, event.Status, event.ImageURL, event.CreatedBy,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return created, nil
}

func (r *EventRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	return scanEvent(r.pool.QueryRow(ctx, query, id))
}

// FindByIDWithLock 以 FOR UPDATE 鎖定活動列，直到交易結束
func (r *EventRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return scanEvent(tx.QueryRow(ctx, query, id))
}

// DecrementSeats 扣除座位；剩餘座位不足時不更新任何資料
func (r *EventRepositoryImpl) DecrementSeats(ctx context.Context, tx pgx.Tx, id uuid.UUID, seats int) (*model.Event, error) {
	query := `
		UPDATE events
		SET available_seats = available_seats - $1, updated_at = clock_timestamp()
		WHERE id = $2 AND available_seats >= $1
		RETURNING ` + eventColumns

	event, err := scanEvent(tx.QueryRow(ctx, query, seats, id))
	if errors.Is(err, apperrors.ErrEventNotFound) {
		return nil, apperrors.ErrInsufficientSeats
	}
	return event, err
}

func (r *EventRepositoryImpl) IncrementSeats(ctx context.Context, tx pgx.Tx, id uuid.UUID, seats int) (*model.Event, error) {
	query := `
		UPDATE events
		SET available_seats = available_seats + $1, updated_at = clock_timestamp()
		WHERE id = $2 AND available_seats + $1 <= total_seats
		RETURNING ` + eventColumns

	event, err := scanEvent(tx.QueryRow(ctx, query, seats, id))
	if errors.Is(err, apperrors.ErrEventNotFound) {
		return nil, apperrors.ErrConflict
	}
	return event, err
}

func (r *EventRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, id uuid.UUID, params model.UpdateEventParams) (*model.Event, error) {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.Venue != nil {
		add("venue", *params.Venue)
	}
	if params.EventDate != nil {
		add("event_date", params.EventDate.UTC())
	}
	if params.TotalSeats != nil {
		add("total_seats", *params.TotalSeats)
	}
	if params.AvailableSeats != nil {
		add("available_seats", *params.AvailableSeats)
	}
	if params.TicketPrice != nil {
		add("ticket_price", *params.TicketPrice)
	}
	if params.Category != nil {
		add("category", *params.Category)
	}
	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.ImageURL != nil {
		add("image_url", *params.ImageURL)
	}

	if len(sets) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	sets = append(sets, "updated_at = clock_timestamp()")

	// add id
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE events
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), argPos, eventColumns)

	return scanEvent(tx.QueryRow(ctx, query, args...))
}

// Delete 有訂位紀錄的活動不可刪除
func (r *EventRepositoryImpl) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	result, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.ErrEventHasBookings
		}
		return err
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}

	return nil
}
