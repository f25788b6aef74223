package repository

import (
    "database/sql"
    "errors"
    "fmt"
    "testing"

    "github.com/go-sql-driver/mysql"
    "github.com/stretchr/testify/assert"
)

func TestMapErr(t *testing.T) {
    assert.NoError(t, mapErr(nil))
    assert.ErrorIs(t, mapErr(sql.ErrNoRows), ErrNotFound)
    assert.ErrorIs(t, mapErr(fmt.Errorf("scan: %w", sql.ErrNoRows)), ErrNotFound)

    dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'TLAAAAAA' for key 'uq_bookings_code'"}
    assert.ErrorIs(t, mapErr(dup), ErrDuplicateKey)

    other := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
    assert.Same(t, other, mapErr(other))

    plain := errors.New("boom")
    assert.Equal(t, plain, mapErr(plain))
}
