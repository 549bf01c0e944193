package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindInsufficientPoints, "Punti insufficienti"))

	assert.True(t, errors.Is(err, ErrInsufficientPoints))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindInsufficientPoints, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, "NotFound", ErrNotFound.Error())
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicateKey(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, isDuplicateKey(errors.New("UNIQUE constraint failed: tables.table_number")))
	assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1146}))
	assert.False(t, isDuplicateKey(nil))
}
