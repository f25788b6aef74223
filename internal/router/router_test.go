package router

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BintangGalang/TiketLoka/internal/config"
	"github.com/BintangGalang/TiketLoka/internal/handler"
	"github.com/BintangGalang/TiketLoka/internal/middleware"
	"github.com/BintangGalang/TiketLoka/internal/model"
	"github.com/BintangGalang/TiketLoka/internal/repository"
	"github.com/BintangGalang/TiketLoka/internal/service"
	"github.com/BintangGalang/TiketLoka/internal/storage"
	"github.com/BintangGalang/TiketLoka/internal/utils"
)

const secret = "router-test-secret"

// purgeLog records cache purges requested by handlers.
type purgeLog struct {
	mu    sync.Mutex
	paths []string
}

func (p *purgeLog) Purge(_ context.Context, paths ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, paths...)
	return nil
}

type app struct {
	e      *echo.Echo
	store  *repository.MemoryStore
	cfg    config.Config
	purged *purgeLog

	buyer, other, admin  string
	destA, destB, closed uint64
}

func newApp(t *testing.T, opts ...Options) *app {
	t.Helper()
	ctx := context.Background()
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	store := repository.NewMemoryStore()

	token := func(name, email, role string) string {
		id, err := store.Create(ctx, name, email, "secret123", role, cfg.BcryptCost)
		require.NoError(t, err)
		at, err := utils.NewAccessToken(secret, id, role, 15)
		require.NoError(t, err)
		return at.Token
	}
	a := &app{store: store, cfg: cfg}
	a.buyer = token("Ayu", "ayu@example.com", model.RoleUser)
	a.other = token("Budi", "budi@example.com", model.RoleUser)
	a.admin = token("Gate", "gate@example.com", model.RoleAdmin)
	a.destA = store.PutDestination(model.Destination{Name: "Borobudur", Slug: "borobudur", Price: 50000, IsActive: true})
	a.destB = store.PutDestination(model.Destination{Name: "Prambanan", Slug: "prambanan", Price: 120000, IsActive: true})
	a.closed = store.PutDestination(model.Destination{Name: "Closed", Slug: "closed", Price: 1000, IsActive: false})

	bookings := service.NewBookingService(store, nil, nil)
	tickets := service.NewTicketService(store, nil, nil)
	reviews := service.NewReviewService(store, store, storage.NewLocalImages(t.TempDir()), nil)
	carts := service.NewCartService(store, store)

	a.purged = &purgeLog{}
	reviewHandler := handler.NewReviewHandler(reviews, nil)
	reviewHandler.Cache = a.purged

	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	a.e = echo.New()
	Setup(a.e, Handlers{
		Auth:         handler.NewAuthHandler(cfg, store, store, nil),
		Destinations: handler.NewDestinationHandler(store, nil),
		Reviews:      reviewHandler,
		Bookings:     handler.NewBookingHandler(bookings, nil),
		Carts:        handler.NewCartHandler(carts, nil),
		Tickets:      handler.NewTicketHandler(tickets, nil),
	}, secret, o)
	return a
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(bs)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func (a *app) addCart(t *testing.T, token string, dest uint64, qty int) int64 {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/cart", token, echo.Map{"destination_id": dest, "quantity": qty, "visit_date": "2026-05-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(decode(t, rec)["data"].(map[string]interface{})["id"].(float64))
}

func (a *app) checkout(t *testing.T, token string, ids ...int64) map[string]interface{} {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/checkout", token, echo.Map{"payment_method": "transfer", "cart_ids": ids})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode(t, rec)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/nope", "", nil).Code)
}

func TestAuthFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, http.MethodPost, "/auth/register", "", echo.Map{"name": "Citra", "email": "Citra@Example.com", "password": "password1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, model.RoleUser, body["user"].(map[string]interface{})["role"])

	rec = a.do(t, http.MethodPost, "/auth/register", "", echo.Map{"name": "Citra", "email": "citra@example.com", "password": "password1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(t, http.MethodPost, "/auth/register", "", echo.Map{"name": "X", "email": "x@example.com", "password": "short"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/auth/login", "", echo.Map{"email": "citra@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(t, http.MethodPost, "/auth/login", "", echo.Map{"email": "citra@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode(t, rec)
	access := login["access"].(map[string]interface{})["token"].(string)
	refresh := login["refresh"].(map[string]interface{})["token"].(string)

	rec = a.do(t, http.MethodGet, "/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Citra", decode(t, rec)["data"].(map[string]interface{})["name"])

	rec = a.do(t, http.MethodPost, "/auth/refresh", "", echo.Map{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode(t, rec)["refresh"].(map[string]interface{})["token"].(string)

	// the old refresh token was revoked by rotation
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, "/auth/refresh", "", echo.Map{"refresh_token": refresh}).Code)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodPost, "/auth/logout", "", echo.Map{"refresh_token": rotated}).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, "/auth/refresh", "", echo.Map{"refresh_token": rotated}).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/auth/logout", "", nil).Code)
}

func TestCheckoutAndShow(t *testing.T) {
	a := newApp(t)
	l1 := a.addCart(t, a.buyer, a.destA, 2)
	l2 := a.addCart(t, a.buyer, a.destB, 1)

	body := a.checkout(t, a.buyer, l1, l2)
	code := body["booking_code"].(string)
	data := body["data"].(map[string]interface{})
	assert.Regexp(t, `^TL[A-Z0-9]{6}$`, code)
	assert.EqualValues(t, 220000, data["grand_total"])
	assert.Equal(t, model.StatusSuccess, data["status"])
	assert.Equal(t, code, data["qr_string"])
	details := data["details"].([]interface{})
	require.Len(t, details, 2)

	// converted lines are gone from the cart
	rec := a.do(t, http.MethodGet, "/cart", a.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["data"])

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/bookings/"+code, a.buyer, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/bookings/"+code, a.admin, nil).Code)
	rec = a.do(t, http.MethodGet, "/bookings/"+code, a.other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized", decode(t, rec)["message"])
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/bookings/TLZZZZZZ", a.buyer, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/bookings/"+code, "", nil).Code)

	rec = a.do(t, http.MethodGet, "/my-bookings", a.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 1)
	rec = a.do(t, http.MethodGet, "/my-bookings", a.other, nil)
	assert.Empty(t, decode(t, rec)["data"])

	rec = a.do(t, http.MethodGet, "/bookings/"+code+"/pdf", a.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	ticket := details[0].(map[string]interface{})["ticket_code"].(string)
	rec = a.do(t, http.MethodGet, "/bookings/"+code+"/tickets/"+ticket+"/qr.png", a.buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/bookings/"+code+"/tickets/TKT-9-XXXXXX/qr.png", a.buyer, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/bookings/"+code+"/qr.png", a.buyer, nil).Code)
}

func TestCheckoutErrors(t *testing.T) {
	a := newApp(t)
	foreign := a.addCart(t, a.other, a.destA, 1)

	rec := a.do(t, http.MethodPost, "/checkout", a.buyer, echo.Map{"payment_method": "transfer", "cart_ids": []int64{foreign}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_selection", decode(t, rec)["error"])

	rec = a.do(t, http.MethodPost, "/checkout", a.buyer, echo.Map{"cart_ids": []int64{foreign}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", decode(t, rec)["error"])

	rec = a.do(t, http.MethodPost, "/checkout", a.buyer, echo.Map{"payment_method": "transfer", "cart_ids": []int64{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// the other user's cart is untouched
	rec = a.do(t, http.MethodGet, "/cart", a.other, nil)
	assert.Len(t, decode(t, rec)["data"], 1)
}

func TestBuyNow(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodPost, "/buy-now", a.buyer, echo.Map{
		"destination_id": a.destB, "quantity": 3, "payment_method": "qris", "visit_date": "2026-06-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 360000, decode(t, rec)["data"].(map[string]interface{})["grand_total"])

	rec = a.do(t, http.MethodPost, "/buy-now", a.buyer, echo.Map{
		"destination_id": 999, "quantity": 1, "payment_method": "qris", "visit_date": "2026-06-01",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodPost, "/buy-now", a.buyer, echo.Map{
		"destination_id": a.destB, "quantity": 0, "payment_method": "qris", "visit_date": "2026-06-01",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestScan(t *testing.T) {
	a := newApp(t)
	body := a.checkout(t, a.buyer, a.addCart(t, a.buyer, a.destA, 1))
	ticket := body["data"].(map[string]interface{})["details"].([]interface{})[0].(map[string]interface{})["ticket_code"].(string)

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/admin/tickets/scan", a.buyer, echo.Map{"ticket_code": ticket}).Code)

	rec := a.do(t, http.MethodPost, "/admin/tickets/scan", a.admin, echo.Map{"ticket_code": ticket})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode(t, rec)
	assert.Equal(t, "success", first["status"])
	assert.Equal(t, "Ayu", first["data"].(map[string]interface{})["user"])
	assert.Equal(t, "Borobudur", first["data"].(map[string]interface{})["destination"])

	rec = a.do(t, http.MethodPost, "/admin/tickets/scan", a.admin, echo.Map{"ticket_code": ticket})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	again := decode(t, rec)
	assert.Equal(t, "warning", again["status"])
	redeemedAt := again["data"].(map[string]interface{})["redeemed_at"]
	assert.NotNil(t, redeemedAt)

	rec = a.do(t, http.MethodPost, "/admin/tickets/scan", a.admin, echo.Map{"ticket_code": ticket})
	assert.Equal(t, redeemedAt, decode(t, rec)["data"].(map[string]interface{})["redeemed_at"])

	rec = a.do(t, http.MethodPost, "/admin/tickets/scan", a.admin, echo.Map{"ticket_code": "TKT-1-NOPE00"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])

	assert.Equal(t, http.StatusUnprocessableEntity, a.do(t, http.MethodPost, "/admin/tickets/scan", a.admin, echo.Map{"ticket_code": " "}).Code)
}

func TestAdminBookings(t *testing.T) {
	a := newApp(t)
	a.checkout(t, a.buyer, a.addCart(t, a.buyer, a.destA, 1))
	a.checkout(t, a.other, a.addCart(t, a.other, a.destB, 1))

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/admin/bookings", a.buyer, nil).Code)

	rec := a.do(t, http.MethodGet, "/admin/bookings", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 2)

	rec = a.do(t, http.MethodGet, "/admin/bookings?status=failed", a.admin, nil)
	assert.Empty(t, decode(t, rec)["data"])

	rec = a.do(t, http.MethodGet, "/admin/bookings?start_date=2001-01-01&end_date=2001-01-02", a.admin, nil)
	assert.Empty(t, decode(t, rec)["data"])

	rec = a.do(t, http.MethodGet, "/admin/bookings?start_date=bad&end_date=2001-01-02", a.admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func reviewForm(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		fw, err := w.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (a *app) postReview(t *testing.T, token string, fields map[string]string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := reviewForm(t, fields, image)
	req := httptest.NewRequest(http.MethodPost, "/reviews", body)
	req.Header.Set(echo.HeaderContentType, ctype)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestReviews(t *testing.T) {
	a := newApp(t)
	dest := strconv.FormatUint(a.destA, 10)
	fields := map[string]string{"destination_id": dest, "rating": "5", "comment": "Indah sekali"}

	rec := a.postReview(t, a.buyer, fields, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_entitled", decode(t, rec)["error"])

	a.checkout(t, a.buyer, a.addCart(t, a.buyer, a.destA, 1))

	rec = a.postReview(t, a.buyer, map[string]string{"destination_id": dest, "rating": "9"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.postReview(t, a.buyer, fields, tinyPNG(t))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)["data"].(map[string]interface{})
	assert.Regexp(t, `^reviews/.+\.jpg$`, created["image"])
	assert.Equal(t, []string{"/destinations/" + dest + "/reviews"}, a.purged.paths)

	rec = a.postReview(t, a.buyer, fields, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, a.purged.paths, 1)

	rec = a.do(t, http.MethodGet, "/destinations/"+dest+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)
	assert.EqualValues(t, 1, page["total"])
	assert.EqualValues(t, 1, page["last_page"])
	assert.EqualValues(t, 5, page["per_page"])
	first := page["data"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Ayu", first["user"].(map[string]interface{})["name"])
}

func TestDestinations(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, http.MethodGet, "/destinations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["data"], 2)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/destinations/"+strconv.FormatUint(a.destA, 10), "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/destinations/"+strconv.FormatUint(a.closed, 10), "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/destinations/abc", "", nil).Code)
}

func TestCartRemove(t *testing.T) {
	a := newApp(t)
	id := a.addCart(t, a.buyer, a.destA, 1)
	path := "/cart/" + strconv.FormatInt(id, 10)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, path, a.other, nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, path, a.buyer, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, path, a.buyer, nil).Code)

	rec := a.do(t, http.MethodPost, "/cart", a.buyer, echo.Map{"destination_id": a.closed, "quantity": 1, "visit_date": "2026-05-01"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func oneShotLimit() echo.MiddlewareFunc {
	return middleware.NewTokenBucket(config.RateLimitConfig{
		Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 5 * time.Hour, KeyStrategy: "user", Prefix: "t:rl",
	}, nil)
}

func TestCheckoutAndScanLimits(t *testing.T) {
	a := newApp(t, Options{CheckoutLimit: oneShotLimit(), ScanLimit: oneShotLimit()})
	order := echo.Map{"destination_id": a.destA, "quantity": 1, "payment_method": "qris", "visit_date": "2026-06-01"}

	rec := a.do(t, http.MethodPost, "/buy-now", a.buyer, order)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decode(t, rec)["data"].(map[string]interface{})["details"].([]interface{})[0].(map[string]interface{})["ticket_code"].(string)

	assert.Equal(t, http.StatusTooManyRequests, a.do(t, http.MethodPost, "/buy-now", a.buyer, order).Code)
	assert.Equal(t, http.StatusTooManyRequests, a.do(t, http.MethodPost, "/checkout", a.buyer, echo.Map{}).Code)
	assert.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/buy-now", a.other, order).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/my-bookings", a.buyer, nil).Code)

	// authentication runs before the bucket
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, "/buy-now", "", order).Code)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/admin/tickets/scan", a.admin, echo.Map{"ticket_code": ticket}).Code)
	assert.Equal(t, http.StatusTooManyRequests, a.do(t, http.MethodPost, "/admin/tickets/scan", a.admin, echo.Map{"ticket_code": ticket}).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/admin/bookings", a.admin, nil).Code)
}
