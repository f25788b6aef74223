package service

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "unicode/utf8"

    "go.uber.org/zap"

    "github.com/BintangGalang/TiketLoka/internal/model"
    "github.com/BintangGalang/TiketLoka/internal/repository"
    "github.com/BintangGalang/TiketLoka/internal/storage"
)

const (
    ReviewPageSize      = 5
    MaxCommentLength    = 500
    MaxReviewImageBytes = 2 << 20
)

// ImageStore persists review images and returns a relative path.
type ImageStore interface {
    SaveReviewImage(ctx context.Context, name string, data []byte) (string, error)
    Remove(rel string) error
}

// ImageInput is an uploaded file as received by the handler.
type ImageInput struct {
    Filename string
    Data     []byte
}

// ReviewInput is one review submission.
type ReviewInput struct {
    DestinationID int64
    Rating        int
    Comment       string
    Image         *ImageInput
}

// ReviewService only accepts reviews from buyers holding a successful
// booking of the destination, one review per such booking.
type ReviewService struct {
    reviews repository.ReviewStore
    catalog repository.CatalogStore
    images  ImageStore
    log     *zap.Logger
}

func NewReviewService(reviews repository.ReviewStore, catalog repository.CatalogStore, images ImageStore, log *zap.Logger) *ReviewService {
    if log == nil {
        log = zap.NewNop()
    }
    return &ReviewService{reviews: reviews, catalog: catalog, images: images, log: log}
}

// Store validates the submission, checks entitlement against the caller's
// latest successful booking of the destination and saves the review.
func (s *ReviewService) Store(ctx context.Context, id Identity, in ReviewInput) (*model.Review, error) {
    if in.DestinationID <= 0 {
        return nil, invalid("destination_id", "destination_id is required")
    }
    if in.Rating < 1 || in.Rating > 5 {
        return nil, invalid("rating", "rating must be between 1 and 5")
    }
    comment := strings.TrimSpace(in.Comment)
    if utf8.RuneCountInString(comment) > MaxCommentLength {
        return nil, invalid("comment", fmt.Sprintf("comment may not exceed %d characters", MaxCommentLength))
    }
    if in.Image != nil {
        if !storage.AllowedExtension(in.Image.Filename) {
            return nil, invalid("image", "image must be a file of type: jpeg, png, jpg, webp")
        }
        if len(in.Image.Data) > MaxReviewImageBytes {
            return nil, invalid("image", "image may not be larger than 2048 kilobytes")
        }
    }
    destID := uint64(in.DestinationID)
    if _, err := s.catalog.GetDestination(ctx, destID); err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return nil, invalid("destination_id", "the selected destination_id is invalid")
        }
        return nil, err
    }

    bookingID, err := s.reviews.LatestSettledBookingWith(ctx, id.UserID, destID)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrNotEntitled
    }
    if err != nil {
        return nil, err
    }
    exists, err := s.reviews.ReviewExists(ctx, id.UserID, destID, bookingID)
    if err != nil {
        return nil, err
    }
    if exists {
        return nil, ErrDuplicate
    }

    rv := &model.Review{
        UserID:        id.UserID,
        DestinationID: destID,
        BookingID:     bookingID,
        Rating:        in.Rating,
    }
    if comment != "" {
        rv.Comment = &comment
    }
    if in.Image != nil && s.images != nil {
        rel, err := s.images.SaveReviewImage(ctx, in.Image.Filename, in.Image.Data)
        if errors.Is(err, storage.ErrUnsupportedImage) {
            return nil, invalid("image", "image must be a valid jpeg, png, jpg or webp file")
        }
        if err != nil {
            return nil, fmt.Errorf("save review image: %w", err)
        }
        rv.Image = &rel
    }

    if err := s.reviews.CreateReview(ctx, rv); err != nil {
        if rv.Image != nil {
            if rmErr := s.images.Remove(*rv.Image); rmErr != nil {
                s.log.Warn("remove orphan review image", zap.String("path", *rv.Image), zap.Error(rmErr))
            }
        }
        if errors.Is(err, repository.ErrDuplicateKey) {
            return nil, ErrDuplicate
        }
        return nil, err
    }
    s.log.Info("review stored",
        zap.Uint64("review_id", rv.ID),
        zap.Uint64("destination_id", destID),
        zap.Uint64("booking_id", bookingID))
    return rv, nil
}

// List returns one page of a destination's reviews, newest first.  Pages
// start at 1; smaller values are treated as 1.
func (s *ReviewService) List(ctx context.Context, destinationID uint64, page int) (*model.ReviewPage, error) {
    if page < 1 {
        page = 1
    }
    offset := (page - 1) * ReviewPageSize
    data, total, err := s.reviews.ListByDestination(ctx, destinationID, ReviewPageSize, offset)
    if err != nil {
        return nil, err
    }
    last := (total + ReviewPageSize - 1) / ReviewPageSize
    if last < 1 {
        last = 1
    }
    return &model.ReviewPage{
        Data:        data,
        CurrentPage: page,
        PerPage:     ReviewPageSize,
        Total:       total,
        LastPage:    last,
    }, nil
}
