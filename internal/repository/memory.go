package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BintangGalang/TiketLoka/internal/model"
	"github.com/BintangGalang/TiketLoka/internal/utils"
)

// MemoryStore keeps every table in process memory.  It backs the
// STORAGE_DRIVER=memory mode and the tests.  One mutex guards all maps;
// WithinTx holds it for the whole transaction and applies staged writes
// only when fn returns nil.
type MemoryStore struct {
	mu sync.Mutex

	users        map[uint64]model.User
	usersByEmail map[string]uint64
	tokens       map[string]model.RefreshToken
	destinations map[uint64]model.Destination
	carts        map[uint64]model.CartLine
	bookings     map[uint64]model.Booking
	details      map[uint64]model.BookingDetail
	ticketIndex  map[string]uint64
	reviews      map[uint64]model.Review

	seq uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uint64]model.User),
		usersByEmail: make(map[string]uint64),
		tokens:       make(map[string]model.RefreshToken),
		destinations: make(map[uint64]model.Destination),
		carts:        make(map[uint64]model.CartLine),
		bookings:     make(map[uint64]model.Booking),
		details:      make(map[uint64]model.BookingDetail),
		ticketIndex:  make(map[string]uint64),
		reviews:      make(map[uint64]model.Review),
	}
}

func (s *MemoryStore) nextID() uint64 {
	s.seq++
	return s.seq
}

// PutDestination inserts or replaces a catalog row.  A zero ID allocates one.
func (s *MemoryStore) PutDestination(d model.Destination) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.nextID()
	}
	s.destinations[d.ID] = d
	return d.ID
}

// ---- UserStore ----

func (s *MemoryStore) Create(ctx context.Context, name, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[email]; ok {
		return 0, ErrEmailExists
	}
	now := time.Now().UTC()
	u := model.User{
		ID:           s.nextID(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u.ID, nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// ---- TokenStore ----

func (s *MemoryStore) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tokenHash]; ok {
		return ErrDuplicateKey
	}
	s.tokens[tokenHash] = model.RefreshToken{
		ID:        s.nextID(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || time.Now().UTC().After(t.ExpiresAt) {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

func (s *MemoryStore) RevokeByHash(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := time.Now().UTC()
		t.RevokedAt = &now
		s.tokens[tokenHash] = t
	}
	return nil
}

func (s *MemoryStore) RevokeAllForUser(ctx context.Context, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for h, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			s.tokens[h] = t
		}
	}
	return nil
}

// ---- CatalogStore ----

func (s *MemoryStore) GetDestination(ctx context.Context, id uint64) (model.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.destinations[id]
	if !ok {
		return model.Destination{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) ListActiveDestinations(ctx context.Context) ([]model.Destination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Destination, 0, len(s.destinations))
	for _, d := range s.destinations {
		if d.IsActive {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---- CartStore ----

func (s *MemoryStore) AddCartLine(ctx context.Context, line *model.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.destinations[line.DestinationID]; !ok {
		return ErrNotFound
	}
	line.ID = s.nextID()
	line.CreatedAt = time.Now().UTC()
	stored := *line
	stored.Destination = nil
	s.carts[line.ID] = stored
	return nil
}

func (s *MemoryStore) ListCartLines(ctx context.Context, userID uint64) ([]model.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CartLine, 0)
	for _, l := range s.carts {
		if l.UserID != userID {
			continue
		}
		d := s.destinations[l.DestinationID]
		l.Destination = &d
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteCartLine(ctx context.Context, userID, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.carts[id]
	if !ok || l.UserID != userID {
		return ErrNotFound
	}
	delete(s.carts, id)
	return nil
}

// ---- BookingStore ----

// memTx stages writes until the surrounding WithinTx commits.  The store
// mutex is held by WithinTx, so memTx never locks.
type memTx struct {
	s           *MemoryStore
	bookings    []model.Booking
	details     []model.BookingDetail
	deleteCarts map[uint64]struct{}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx CheckoutTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seq
	tx := &memTx{s: s, deleteCarts: make(map[uint64]struct{})}
	if err := fn(tx); err != nil {
		s.seq = seq
		return err
	}
	if err := ctx.Err(); err != nil {
		s.seq = seq
		return err
	}
	for _, b := range tx.bookings {
		b.Details = nil
		b.User = nil
		s.bookings[b.ID] = b
	}
	for _, d := range tx.details {
		d.Destination = nil
		s.details[d.ID] = d
		s.ticketIndex[d.TicketCode] = d.ID
	}
	for id := range tx.deleteCarts {
		delete(s.carts, id)
	}
	return nil
}

func (t *memTx) LockCartLines(ctx context.Context, userID uint64, ids []uint64) ([]model.CartLine, error) {
	out := make([]model.CartLine, 0, len(ids))
	for _, id := range ids {
		l, ok := t.s.carts[id]
		if !ok || l.UserID != userID {
			continue
		}
		if _, gone := t.deleteCarts[id]; gone {
			continue
		}
		d, ok := t.s.destinations[l.DestinationID]
		if !ok {
			continue
		}
		l.Destination = &d
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GetDestination(ctx context.Context, id uint64) (model.Destination, error) {
	d, ok := t.s.destinations[id]
	if !ok {
		return model.Destination{}, ErrNotFound
	}
	return d, nil
}

func (t *memTx) BookingCodeExists(ctx context.Context, code string) (bool, error) {
	if t.s.bookingByCode(code) != nil {
		return true, nil
	}
	for _, b := range t.bookings {
		if b.BookingCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	if ok, _ := t.BookingCodeExists(ctx, b.BookingCode); ok {
		return ErrDuplicateKey
	}
	b.ID = t.s.nextID()
	t.bookings = append(t.bookings, *b)
	return nil
}

func (t *memTx) TicketCodeExists(ctx context.Context, code string) (bool, error) {
	if _, ok := t.s.ticketIndex[code]; ok {
		return true, nil
	}
	for _, d := range t.details {
		if d.TicketCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertDetail(ctx context.Context, d *model.BookingDetail) error {
	if ok, _ := t.TicketCodeExists(ctx, d.TicketCode); ok {
		return ErrDuplicateKey
	}
	d.ID = t.s.nextID()
	t.details = append(t.details, *d)
	return nil
}

func (t *memTx) DeleteCartLines(ctx context.Context, userID uint64, ids []uint64) error {
	for _, id := range ids {
		if l, ok := t.s.carts[id]; ok && l.UserID == userID {
			t.deleteCarts[id] = struct{}{}
		}
	}
	return nil
}

// bookingByCode must be called with s.mu held.
func (s *MemoryStore) bookingByCode(code string) *model.Booking {
	for _, b := range s.bookings {
		if b.BookingCode == code {
			b := b
			return &b
		}
	}
	return nil
}

// hydrate attaches user and details.  Must be called with s.mu held.
func (s *MemoryStore) hydrate(b model.Booking) model.Booking {
	u := s.users[b.UserID]
	b.User = &model.PublicUser{ID: u.ID, Name: u.Name}
	b.Details = make([]model.BookingDetail, 0)
	for _, d := range s.details {
		if d.BookingID != b.ID {
			continue
		}
		dest := s.destinations[d.DestinationID]
		d.Destination = &model.DestinationSummary{ID: dest.ID, Name: dest.Name, Slug: dest.Slug, ImageURL: dest.ImageURL}
		if d.RedeemedAt != nil {
			at := *d.RedeemedAt
			d.RedeemedAt = &at
		}
		b.Details = append(b.Details, d)
	}
	sort.Slice(b.Details, func(i, j int) bool { return b.Details[i].ID < b.Details[j].ID })
	return b
}

func newestFirst(list []model.Booking) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, s.hydrate(b))
		}
	}
	newestFirst(out)
	return out, nil
}

func (s *MemoryStore) GetByCode(ctx context.Context, code string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bookingByCode(code)
	if b == nil {
		return nil, ErrNotFound
	}
	h := s.hydrate(*b)
	return &h, nil
}

func (s *MemoryStore) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ranged := !f.From.IsZero() && !f.To.IsZero()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if ranged && (b.CreatedAt.Before(f.From) || !b.CreatedAt.Before(f.To)) {
			continue
		}
		out = append(out, s.hydrate(b))
	}
	newestFirst(out)
	return out, nil
}

// ---- TicketStore ----

func (s *MemoryStore) FindTicket(ctx context.Context, code string) (*model.TicketView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ticketIndex[code]
	if !ok {
		return nil, ErrNotFound
	}
	d := s.details[id]
	b := s.bookings[d.BookingID]
	v := &model.TicketView{
		DetailID:        d.ID,
		BookingID:       d.BookingID,
		TicketCode:      d.TicketCode,
		VisitDate:       d.VisitDate,
		BuyerName:       s.users[b.UserID].Name,
		DestinationName: s.destinations[d.DestinationID].Name,
	}
	if d.RedeemedAt != nil {
		at := *d.RedeemedAt
		v.RedeemedAt = &at
	}
	return v, nil
}

func (s *MemoryStore) MarkRedeemed(ctx context.Context, code string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ticketIndex[code]
	if !ok {
		return false, nil
	}
	d := s.details[id]
	if d.RedeemedAt != nil {
		return false, nil
	}
	at = at.UTC()
	d.RedeemedAt = &at
	s.details[id] = d
	return true, nil
}

// ---- ReviewStore ----

func (s *MemoryStore) LatestSettledBookingWith(ctx context.Context, userID, destinationID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *model.Booking
	for _, b := range s.bookings {
		if b.UserID != userID || b.Status != model.StatusSuccess {
			continue
		}
		if !s.bookingHasDestination(b.ID, destinationID) {
			continue
		}
		if best == nil || b.CreatedAt.After(best.CreatedAt) ||
			(b.CreatedAt.Equal(best.CreatedAt) && b.ID > best.ID) {
			b := b
			best = &b
		}
	}
	if best == nil {
		return 0, ErrNotFound
	}
	return best.ID, nil
}

func (s *MemoryStore) bookingHasDestination(bookingID, destinationID uint64) bool {
	for _, d := range s.details {
		if d.BookingID == bookingID && d.DestinationID == destinationID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ReviewExists(ctx context.Context, userID, destinationID, bookingID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviewExists(userID, destinationID, bookingID), nil
}

func (s *MemoryStore) reviewExists(userID, destinationID, bookingID uint64) bool {
	for _, r := range s.reviews {
		if r.UserID == userID && r.DestinationID == destinationID && r.BookingID == bookingID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateReview(ctx context.Context, r *model.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reviewExists(r.UserID, r.DestinationID, r.BookingID) {
		return ErrDuplicateKey
	}
	r.ID = s.nextID()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	stored := *r
	stored.User = nil
	s.reviews[r.ID] = stored
	return nil
}

func (s *MemoryStore) ListByDestination(ctx context.Context, destinationID uint64, limit, offset int) ([]model.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]model.Review, 0)
	for _, r := range s.reviews {
		if r.DestinationID == destinationID {
			u := s.users[r.UserID]
			r.User = &model.PublicUser{ID: u.ID, Name: u.Name}
			all = append(all, r)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	if offset >= total {
		return []model.Review{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}
