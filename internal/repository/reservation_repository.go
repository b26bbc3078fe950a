package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/timeslot-reservation/internal/model"
)

// ReservationRepo provides CRUD operations for the reservations table.
// Reads that feed a booking decision have *Tx variants taking locking
// reads, so that the count-check-and-insert sequence is serialized by
// InnoDB for a given name and slot label.  All timestamps are UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the handle so callers can open transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// LabelsByNameTx returns every slot label booked under name.  The rows
// (and the gap after them) stay locked until the transaction ends.
func (r *ReservationRepo) LabelsByNameTx(ctx context.Context, tx *sql.Tx, name string) ([]string, error) {
	const q = `SELECT timeslot FROM reservations WHERE name = ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	labels := make([]string, 0)
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// CountByLabelTx counts the rows stored under exactly label with a
// locking read.
func (r *ReservationRepo) CountByLabelTx(ctx context.Context, tx *sql.Tx, label string) (int, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE timeslot = ? FOR UPDATE`
	var n int
	if err := tx.QueryRowContext(ctx, q, label).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CreateTx inserts res inside tx and fills in its ID and CreatedAt.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (name, timeslot, order_in_slot, used) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.Name, res.SlotLabel, res.OrderInSlot, res.Used)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back created_at, which is defaulted by the database
	const sel = `SELECT created_at FROM reservations WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt)
}

// CountsByLabel returns the number of reservations per exact label in a
// single grouped query.  Labels without reservations are absent.
func (r *ReservationRepo) CountsByLabel(ctx context.Context) (map[string]int, error) {
	const q = `SELECT timeslot, COUNT(*) FROM reservations GROUP BY timeslot`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// ListAll returns every reservation ordered for display: by slot label,
// then by position inside the slot, then by creation time.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	const q = `SELECT id, name, timeslot, COALESCE(order_in_slot, 0), used, created_at
               FROM reservations
               ORDER BY timeslot, order_in_slot, created_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var m model.Reservation
		if err := rows.Scan(&m.ID, &m.Name, &m.SlotLabel, &m.OrderInSlot, &m.Used, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetByID fetches a single reservation.  It returns ErrNotFound when the
// id does not exist.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, name, timeslot, COALESCE(order_in_slot, 0), used, created_at FROM reservations WHERE id = ?`
	var m model.Reservation
	err := r.db.QueryRowContext(ctx, q, id).Scan(&m.ID, &m.Name, &m.SlotLabel, &m.OrderInSlot, &m.Used, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteByID removes one reservation.  Remaining rows keep their
// order_in_slot.
func (r *ReservationRepo) DeleteByID(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteByNameAndLabel cancels the reservations matching both name and
// the exact label.  It returns how many rows were removed, or
// ErrNotFound when none matched.
func (r *ReservationRepo) DeleteByNameAndLabel(ctx context.Context, name, label string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE name = ? AND timeslot = ?`, name, label)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// ToggleUsed flips the used flag of one reservation.
func (r *ReservationRepo) ToggleUsed(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reservations SET used = NOT used WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// ResetUsed clears the used flag on every reservation and returns the
// number of rows changed.
func (r *ReservationRepo) ResetUsed(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE reservations SET used = FALSE WHERE used = TRUE`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
