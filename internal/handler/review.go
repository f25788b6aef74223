package handler

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/service"
)

// Purger drops cached public responses for the given request paths.
type Purger interface {
    Purge(ctx context.Context, paths ...string) error
}

// ReviewHandler accepts multipart review submissions and lists reviews.
// Cache is optional.
type ReviewHandler struct {
    Reviews *service.ReviewService
    Cache   Purger
    Log     *zap.Logger
}

func NewReviewHandler(r *service.ReviewService, log *zap.Logger) *ReviewHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &ReviewHandler{Reviews: r, Log: log}
}

// Store handles the multipart form {destination_id, rating, comment?, image?}.
func (h *ReviewHandler) Store(c echo.Context) error {
    id, err := identity(c)
    if err != nil {
        return unauthenticated(c)
    }
    in := service.ReviewInput{Comment: c.FormValue("comment")}
    if in.DestinationID, err = formInt(c, "destination_id"); err != nil {
        return fail(c, h.Log, &service.ValidationError{Field: "destination_id", Message: "destination_id must be an integer"})
    }
    rating, err := formInt(c, "rating")
    if err != nil {
        return fail(c, h.Log, &service.ValidationError{Field: "rating", Message: "rating must be an integer"})
    }
    in.Rating = int(rating)

    if fh, err := c.FormFile("image"); err == nil {
        f, err := fh.Open()
        if err != nil {
            return fail(c, h.Log, err)
        }
        // One byte past the limit is enough to report an oversized file.
        data, err := io.ReadAll(io.LimitReader(f, service.MaxReviewImageBytes+1))
        f.Close()
        if err != nil {
            return fail(c, h.Log, err)
        }
        in.Image = &service.ImageInput{Filename: fh.Filename, Data: data}
    } else if err != http.ErrMissingFile && err != http.ErrNotMultipart {
        return badBody(c)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
    defer cancel()
    rv, err := h.Reviews.Store(ctx, id, in)
    if err != nil {
        return fail(c, h.Log, err)
    }
    if h.Cache != nil {
        if err := h.Cache.Purge(ctx, fmt.Sprintf("/destinations/%d/reviews", rv.DestinationID)); err != nil {
            h.Log.Warn("purge cached reviews", zap.Uint64("destination_id", rv.DestinationID), zap.Error(err))
        }
    }
    return c.JSON(http.StatusCreated, echo.Map{"message": "thank you for your review", "data": rv})
}

// Index returns one page (five per page) of a destination's reviews.
func (h *ReviewHandler) Index(c echo.Context) error {
    destID, ok := parseID(c.Param("id"))
    if !ok {
        return fail(c, h.Log, service.ErrNotFound)
    }
    page, _ := strconv.Atoi(c.QueryParam("page"))
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()
    p, err := h.Reviews.List(ctx, destID, page)
    if err != nil {
        return fail(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, p)
}

// formInt parses an integer form field; a missing field yields 0.
func formInt(c echo.Context, name string) (int64, error) {
    v := strings.TrimSpace(c.FormValue(name))
    if v == "" {
        return 0, nil
    }
    return strconv.ParseInt(v, 10, 64)
}
