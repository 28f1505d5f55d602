package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("append: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: bill_events.aggregate_id, bill_events.sequence")))
	assert.True(t, IsDuplicateKeyErr(errors.New(`ERROR: duplicate key value violates unique constraint "ux_bill_events_stream"`)))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsBusyErr(t *testing.T) {
	assert.True(t, IsBusyErr(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsBusyErr(errors.New("syntax error")))
	assert.False(t, IsBusyErr(nil))
}
