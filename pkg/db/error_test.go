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
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: payrolls.employee_id, payrolls.month")))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection reset")))
}

func TestNewTestIsolated(t *testing.T) {
	type row struct{ ID int64 }

	a, err := NewTest()
	assert.NoError(t, err)
	b, err := NewTest()
	assert.NoError(t, err)

	assert.NoError(t, a.AutoMigrate(&row{}))
	assert.NoError(t, a.Create(&row{ID: 1}).Error)
	assert.False(t, b.Migrator().HasTable(&row{}))
}
