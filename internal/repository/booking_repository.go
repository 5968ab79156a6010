package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-booking-api/internal/model"
	apperrors "event-booking-api/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const duplicateBookingConstraint = "uq_bookings_user_event_confirmed"

type BookingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	FindByReference(ctx context.Context, reference string) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int, error)
	Stats(ctx context.Context, eventID *uuid.UUID, since time.Time) (*model.BookingStats, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) (*model.Booking, error)
	FindByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Booking, error)
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Booking, error)
	HasConfirmedBooking(ctx context.Context, tx pgx.Tx, userID, eventID uuid.UUID) (bool, error)
	UpdateState(ctx context.Context, tx pgx.Tx, booking *model.Booking) (*model.Booking, error)
	CancelConfirmedForEvent(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, cancelledAt time.Time) ([]*model.Booking, error)
}

type BookingRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &BookingRepositoryImpl{
		pool: pool,
	}
}

const bookingColumns = `b.id, b.booking_reference, b.user_id, b.event_id, b.number_of_seats, b.total_amount,
	b.status, b.payment_status, b.special_requests, b.admin_notes, b.booked_at, b.cancelled_at,
	b.created_at, b.updated_at`

// bookingDetailSelect 附帶活動與使用者摘要
const bookingDetailSelect = `
	SELECT ` + bookingColumns + `,
		e.id, e.title, e.venue, e.event_date, e.ticket_price, e.status,
		u.id, u.first_name, u.last_name, u.email
	FROM bookings b
	JOIN events e ON e.id = b.event_id
	JOIN users u ON u.id = b.user_id`

func bookingFields(b *model.Booking) []any {
	return []any{
		&b.ID,
		&b.Reference,
		&b.UserID,
		&b.EventID,
		&b.NumberOfSeats,
		&b.TotalAmount,
		&b.Status,
		&b.PaymentStatus,
		&b.SpecialRequests,
		&b.AdminNotes,
		&b.BookedAt,
		&b.CancelledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	if err := row.Scan(bookingFields(&booking)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func scanBookingDetail(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	event := &model.EventSummary{}
	user := &model.UserSummary{}

	dest := append(bookingFields(&booking),
		&event.ID, &event.Title, &event.Venue, &event.EventDate, &event.TicketPrice, &event.Status,
		&user.ID, &user.FirstName, &user.LastName, &user.Email,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, err
	}

	booking.Event = event
	booking.User = user
	return &booking, nil
}

// Create 寫入訂位；同一使用者對同一活動只能有一筆 confirmed 訂位
func (r *BookingRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) (*model.Booking, error) {
	query := `
		INSERT INTO bookings AS b (
			booking_reference, user_id, event_id, number_of_seats, total_amount,
			status, payment_status, special_requests, booked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + bookingColumns

	created, err := scanBooking(tx.QueryRow(ctx, query,
		booking.Reference, booking.UserID, booking.EventID, booking.NumberOfSeats,
		booking.TotalAmount, booking.Status, booking.PaymentStatus,
		booking.SpecialRequests, booking.BookedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == duplicateBookingConstraint {
				return nil, apperrors.ErrDuplicateBooking
			}
			// booking_reference 碰撞，可重試
			return nil, fmt.Errorf("%w: booking reference collision", apperrors.ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return created, nil
}

func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return scanBookingDetail(r.pool.QueryRow(ctx, bookingDetailSelect+` WHERE b.id = $1`, id))
}

func (r *BookingRepositoryImpl) FindByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Booking, error) {
	return scanBookingDetail(tx.QueryRow(ctx, bookingDetailSelect+` WHERE b.id = $1`, id))
}

func (r *BookingRepositoryImpl) FindByReference(ctx context.Context, reference string) (*model.Booking, error) {
	return scanBookingDetail(r.pool.QueryRow(ctx, bookingDetailSelect+` WHERE b.booking_reference = $1`, reference))
}

func (r *BookingRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1 FOR UPDATE`
	return scanBooking(tx.QueryRow(ctx, query, id))
}

func (r *BookingRepositoryImpl) HasConfirmedBooking(ctx context.Context, tx pgx.Tx, userID, eventID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE user_id = $1 AND event_id = $2 AND status = 'confirmed'
		)`

	var exists bool
	if err := tx.QueryRow(ctx, query, userID, eventID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateState 寫回狀態、付款狀態、管理員備註與取消時間
func (r *BookingRepositoryImpl) UpdateState(ctx context.Context, tx pgx.Tx, booking *model.Booking) (*model.Booking, error) {
	query := `
		UPDATE bookings AS b
		SET status = $1, payment_status = $2, admin_notes = $3, cancelled_at = $4, updated_at = clock_timestamp()
		WHERE b.id = $5
		RETURNING ` + bookingColumns

	updated, err := scanBooking(tx.QueryRow(ctx, query,
		booking.Status, booking.PaymentStatus, booking.AdminNotes, booking.CancelledAt, booking.ID,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == duplicateBookingConstraint {
			return nil, apperrors.ErrDuplicateBooking
		}
		return nil, err
	}
	return updated, nil
}

// CancelConfirmedForEvent 活動取消時一併取消所有已確認訂位，已付款者改為退款
// 座位不在此歸還，呼叫端須以回傳的訂位加總後 IncrementSeats
func (r *BookingRepositoryImpl) CancelConfirmedForEvent(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, cancelledAt time.Time) ([]*model.Booking, error) {
	query := `
		UPDATE bookings AS b
		SET status = 'cancelled',
			payment_status = CASE WHEN b.payment_status = 'completed' THEN 'refunded' ELSE b.payment_status END,
			cancelled_at = $2,
			updated_at = clock_timestamp()
		WHERE b.event_id = $1 AND b.status = 'confirmed'
		RETURNING ` + bookingColumns

	rows, err := tx.Query(ctx, query, eventID, cancelledAt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cancelled := make([]*model.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		cancelled = append(cancelled, booking)
	}
	return cancelled, rows.Err()
}

func (r *BookingRepositoryImpl) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int, error) {
	conds := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.UserID != nil {
		conds = append(conds, fmt.Sprintf("b.user_id = $%d", argPos))
		args = append(args, *filter.UserID)
		argPos++
	}
	if filter.EventID != nil {
		conds = append(conds, fmt.Sprintf("b.event_id = $%d", argPos))
		args = append(args, *filter.EventID)
		argPos++
	}
	if filter.Status != nil {
		conds = append(conds, fmt.Sprintf("b.status = $%d", argPos))
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.Upcoming {
		conds = append(conds, "e.event_date > NOW()")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM bookings b JOIN events e ON e.id = b.event_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "DESC"
	if filter.OldestFirst {
		order = "ASC"
	}

	query := fmt.Sprintf(`%s%s ORDER BY b.booked_at %s, b.id LIMIT $%d OFFSET $%d`,
		bookingDetailSelect, where, order, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	bookings := make([]*model.Booking, 0)
	for rows.Next() {
		booking, err := scanBookingDetail(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

// Stats 彙總訂位統計；eventID 為 nil 時統計全部
func (r *BookingRepositoryImpl) Stats(ctx context.Context, eventID *uuid.UUID, since time.Time) (*model.BookingStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'refunded'),
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'confirmed' AND payment_status = 'completed'), 0)::float8,
			COUNT(*) FILTER (WHERE booked_at >= $1)
		FROM bookings
		WHERE ($2::uuid IS NULL OR event_id = $2)`

	var stats model.BookingStats
	err := r.pool.QueryRow(ctx, query, since, eventID).Scan(
		&stats.TotalBookings,
		&stats.ConfirmedBookings,
		&stats.CancelledBookings,
		&stats.PendingBookings,
		&stats.RefundedBookings,
		&stats.TotalRevenue,
		&stats.RecentBookings,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
