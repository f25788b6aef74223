package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/BintangGalang/TiketLoka/internal/model"
)

// BookingRepo provides persistence for bookings and their detail lines.
// A booking groups one or more booking_details rows, each of which holds
// a unique ticket code.  All timestamp fields are stored in UTC.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// WithinTx runs fn inside a database transaction.  The transaction is
// committed when fn returns nil and rolled back otherwise, so either every
// write made through tx becomes visible or none does.
func (r *BookingRepo) WithinTx(ctx context.Context, fn func(tx CheckoutTx) error) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(&sqlCheckoutTx{tx: tx}); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// sqlCheckoutTx implements CheckoutTx on top of a *sql.Tx.
type sqlCheckoutTx struct {
    tx *sql.Tx
}

// LockCartLines selects the caller's cart lines with FOR UPDATE so a
// concurrent checkout of the same lines waits for this transaction and
// then observes them deleted.
func (t *sqlCheckoutTx) LockCartLines(ctx context.Context, userID uint64, ids []uint64) ([]model.CartLine, error) {
    if len(ids) == 0 {
        return []model.CartLine{}, nil
    }
    args := make([]interface{}, 0, len(ids)+1)
    args = append(args, userID)
    for _, id := range ids {
        args = append(args, id)
    }
    q := `SELECT c.id, c.user_id, c.destination_id, c.quantity, DATE_FORMAT(c.visit_date, '%Y-%m-%d'), c.created_at,
                 d.id, d.category_id, d.name, d.slug, d.price, d.is_active, COALESCE(d.image_url, '')
          FROM carts c
          JOIN destinations d ON d.id = c.destination_id
          WHERE c.user_id = ? AND c.id IN (` + placeholders(len(ids)) + `)
          ORDER BY c.id
          FOR UPDATE`
    rows, err := t.tx.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    lines := make([]model.CartLine, 0, len(ids))
    for rows.Next() {
        var l model.CartLine
        var d model.Destination
        if err := rows.Scan(&l.ID, &l.UserID, &l.DestinationID, &l.Quantity, &l.VisitDate, &l.CreatedAt,
            &d.ID, &d.CategoryID, &d.Name, &d.Slug, &d.Price, &d.IsActive, &d.ImageURL); err != nil {
            return nil, err
        }
        l.Destination = &d
        lines = append(lines, l)
    }
    return lines, rows.Err()
}

// GetDestination reads the current catalog row inside the transaction.
func (t *sqlCheckoutTx) GetDestination(ctx context.Context, id uint64) (model.Destination, error) {
    return scanDestination(t.tx.QueryRowContext(ctx, selectDestination+` WHERE id = ?`, id))
}

func (t *sqlCheckoutTx) BookingCodeExists(ctx context.Context, code string) (bool, error) {
    var one int
    err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE booking_code = ? LIMIT 1`, code).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    return err == nil, err
}

// InsertBooking inserts the booking header and populates its ID.
func (t *sqlCheckoutTx) InsertBooking(ctx context.Context, b *model.Booking) error {
    const q = `INSERT INTO bookings (user_id, booking_code, grand_total, status, payment_method, paid_at, qr_string, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := t.tx.ExecContext(ctx, q, b.UserID, b.BookingCode, b.GrandTotal, b.Status, b.PaymentMethod,
        b.PaidAt.UTC(), b.QRString, b.CreatedAt.UTC())
    if err != nil {
        return mapErr(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    return nil
}

func (t *sqlCheckoutTx) TicketCodeExists(ctx context.Context, code string) (bool, error) {
    var one int
    err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM booking_details WHERE ticket_code = ? LIMIT 1`, code).Scan(&one)
    if err == sql.ErrNoRows {
        return false, nil
    }
    return err == nil, err
}

// InsertDetail inserts one booking_details row and populates its ID.
func (t *sqlCheckoutTx) InsertDetail(ctx context.Context, d *model.BookingDetail) error {
    const q = `INSERT INTO booking_details (booking_id, destination_id, quantity, price_per_unit, subtotal, visit_date, ticket_code)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := t.tx.ExecContext(ctx, q, d.BookingID, d.DestinationID, d.Quantity, d.PricePerUnit, d.Subtotal, d.VisitDate, d.TicketCode)
    if err != nil {
        return mapErr(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    d.ID = uint64(id)
    return nil
}

// DeleteCartLines removes exactly the given lines of the given user.
func (t *sqlCheckoutTx) DeleteCartLines(ctx context.Context, userID uint64, ids []uint64) error {
    if len(ids) == 0 {
        return nil
    }
    args := make([]interface{}, 0, len(ids)+1)
    args = append(args, userID)
    for _, id := range ids {
        args = append(args, id)
    }
    _, err := t.tx.ExecContext(ctx, `DELETE FROM carts WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
    return err
}

const selectBooking = `SELECT b.id, b.user_id, b.booking_code, b.grand_total, b.status, b.payment_method,
                              b.paid_at, b.qr_string, b.created_at, u.id, u.name
                       FROM bookings b
                       JOIN users u ON u.id = b.user_id`

func scanBooking(row interface{ Scan(...interface{}) error }) (model.Booking, error) {
    var b model.Booking
    var u model.PublicUser
    var paidAt sql.NullTime
    if err := row.Scan(&b.ID, &b.UserID, &b.BookingCode, &b.GrandTotal, &b.Status, &b.PaymentMethod,
        &paidAt, &b.QRString, &b.CreatedAt, &u.ID, &u.Name); err != nil {
        return model.Booking{}, err
    }
    if paidAt.Valid {
        b.PaidAt = paidAt.Time.UTC()
    }
    b.CreatedAt = b.CreatedAt.UTC()
    b.User = &u
    b.Details = []model.BookingDetail{}
    return b, nil
}

// GetByCode returns one booking with its details and destinations.  It
// returns ErrNotFound when no booking carries the code.  Ownership is
// checked by the caller.
func (r *BookingRepo) GetByCode(ctx context.Context, code string) (*model.Booking, error) {
    b, err := scanBooking(r.db.QueryRowContext(ctx, selectBooking+` WHERE b.booking_code = ?`, code))
    if err != nil {
        return nil, mapErr(err)
    }
    list := []model.Booking{b}
    if err := r.attachDetails(ctx, list); err != nil {
        return nil, err
    }
    return &list[0], nil
}

// ListByUser returns all bookings of the user, newest first, each with
// its details.  When no bookings exist an empty slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
    return r.query(ctx, selectBooking+` WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC`, userID)
}

// List returns bookings across all users for the admin view, filtered by
// status and created_at range when set.
func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
    where := make([]string, 0, 3)
    args := make([]interface{}, 0, 3)
    if f.Status != "" {
        where = append(where, "b.status = ?")
        args = append(args, f.Status)
    }
    if !f.From.IsZero() && !f.To.IsZero() {
        where = append(where, "b.created_at >= ? AND b.created_at < ?")
        args = append(args, f.From.UTC(), f.To.UTC())
    }
    q := selectBooking
    if len(where) > 0 {
        q += ` WHERE ` + strings.Join(where, " AND ")
    }
    q += ` ORDER BY b.created_at DESC, b.id DESC`
    return r.query(ctx, q, args...)
}

func (r *BookingRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Booking, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    bookings := make([]model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        bookings = append(bookings, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if err := r.attachDetails(ctx, bookings); err != nil {
        return nil, err
    }
    return bookings, nil
}

// attachDetails loads the details of all given bookings in one query.
func (r *BookingRepo) attachDetails(ctx context.Context, bookings []model.Booking) error {
    if len(bookings) == 0 {
        return nil
    }
    index := make(map[uint64]int, len(bookings))
    ids := make([]interface{}, 0, len(bookings))
    for i, b := range bookings {
        index[b.ID] = i
        ids = append(ids, b.ID)
    }
    q := `SELECT bd.id, bd.booking_id, bd.destination_id, bd.quantity, bd.price_per_unit, bd.subtotal,
                 DATE_FORMAT(bd.visit_date, '%Y-%m-%d'), bd.ticket_code, bd.redeemed_at,
                 d.id, d.name, d.slug, COALESCE(d.image_url, '')
          FROM booking_details bd
          JOIN destinations d ON d.id = bd.destination_id
          WHERE bd.booking_id IN (` + placeholders(len(ids)) + `)
          ORDER BY bd.booking_id, bd.id`
    rows, err := r.db.QueryContext(ctx, q, ids...)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        var d model.BookingDetail
        var dest model.DestinationSummary
        var redeemedAt sql.NullTime
        if err := rows.Scan(&d.ID, &d.BookingID, &d.DestinationID, &d.Quantity, &d.PricePerUnit, &d.Subtotal,
            &d.VisitDate, &d.TicketCode, &redeemedAt, &dest.ID, &dest.Name, &dest.Slug, &dest.ImageURL); err != nil {
            return err
        }
        if redeemedAt.Valid {
            t := redeemedAt.Time.UTC()
            d.RedeemedAt = &t
        }
        d.Destination = &dest
        idx, ok := index[d.BookingID]
        if !ok {
            continue
        }
        bookings[idx].Details = append(bookings[idx].Details, d)
    }
    return rows.Err()
}

// FindTicket loads the ticket with its buyer and destination names.
func (r *BookingRepo) FindTicket(ctx context.Context, code string) (*model.TicketView, error) {
    const q = `SELECT bd.id, bd.booking_id, bd.ticket_code, DATE_FORMAT(bd.visit_date, '%Y-%m-%d'), bd.redeemed_at,
                      u.name, d.name
               FROM booking_details bd
               JOIN bookings b ON b.id = bd.booking_id
               JOIN users u ON u.id = b.user_id
               JOIN destinations d ON d.id = bd.destination_id
               WHERE bd.ticket_code = ?`
    var v model.TicketView
    var redeemedAt sql.NullTime
    err := r.db.QueryRowContext(ctx, q, code).Scan(&v.DetailID, &v.BookingID, &v.TicketCode, &v.VisitDate,
        &redeemedAt, &v.BuyerName, &v.DestinationName)
    if err != nil {
        return nil, mapErr(err)
    }
    if redeemedAt.Valid {
        t := redeemedAt.Time.UTC()
        v.RedeemedAt = &t
    }
    return &v, nil
}

// MarkRedeemed performs the Unredeemed -> Redeemed transition as a single
// conditional UPDATE.  Of several concurrent callers only one sees an
// affected row; the rest get false.
func (r *BookingRepo) MarkRedeemed(ctx context.Context, code string, at time.Time) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE booking_details SET redeemed_at = ? WHERE ticket_code = ? AND redeemed_at IS NULL`,
        at.UTC(), code)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// placeholders returns "?,?,...,?" with n entries.
func placeholders(n int) string {
    if n <= 0 {
        return ""
    }
    return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
