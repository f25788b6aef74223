package service

import (
    "context"
    "crypto/rand"
    "errors"
    "fmt"

    "github.com/BintangGalang/TiketLoka/internal/repository"
)

const (
    codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
    codeSuffixLen   = 6
    maxCodeAttempts = 10
)

// RandomSource returns n characters drawn from codeAlphabet.
type RandomSource func(n int) (string, error)

// CryptoRandom draws uniformly from codeAlphabet using crypto/rand.  Bytes
// at or above the largest multiple of the alphabet size are discarded so
// every character has the same probability.
func CryptoRandom(n int) (string, error) {
    const limit = 256 - 256%len(codeAlphabet)
    out := make([]byte, 0, n)
    buf := make([]byte, n*2)
    for len(out) < n {
        if _, err := rand.Read(buf); err != nil {
            return "", err
        }
        for _, b := range buf {
            if int(b) >= limit {
                continue
            }
            out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
            if len(out) == n {
                break
            }
        }
    }
    return string(out), nil
}

// BookingCode formats a booking code: "TL" followed by the suffix.
func BookingCode(suffix string) string { return "TL" + suffix }

// TicketCode formats a ticket code: "TKT-{destinationID}-" followed by the suffix.
func TicketCode(destinationID uint64, suffix string) string {
    return fmt.Sprintf("TKT-%d-%s", destinationID, suffix)
}

// allocate draws candidates until one is unused and inserts it.  A
// candidate that exists, or whose insert hits the unique index, counts as
// a collision.  After maxCodeAttempts collisions it gives up with
// ErrCodeAllocationExhausted.
func allocate(ctx context.Context, rnd RandomSource, format func(string) string,
    exists func(context.Context, string) (bool, error), insert func(string) error) error {
    for attempt := 0; attempt < maxCodeAttempts; attempt++ {
        suffix, err := rnd(codeSuffixLen)
        if err != nil {
            return fmt.Errorf("random code: %w", err)
        }
        code := format(suffix)
        taken, err := exists(ctx, code)
        if err != nil {
            return err
        }
        if taken {
            continue
        }
        err = insert(code)
        if errors.Is(err, repository.ErrDuplicateKey) {
            continue
        }
        return err
    }
    return ErrCodeAllocationExhausted
}
