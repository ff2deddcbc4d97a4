package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/rowmap/internal/errs"
)

func TestSelect_WhereIn(t *testing.T) {
	sql, args, err := Select("vehicles", DialectPostgres).
		Columns("id").
		Where("type", "in", []any{"car", "sports"}).
		Where("id", ">", 10).
		Build()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "vehicles" WHERE "type" IN ($1, $2) AND "id" > $3`, sql)
	assert.Equal(t, []any{"car", "sports", 10}, args)

	sql, _, err = Select("vehicles", DialectMySQL).Columns("id").Where("type", "IN", []any{"car"}).Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT `id` FROM `vehicles` WHERE `type` IN (?)", sql)
}

func TestSelect_WhereInRejectsEmptyList(t *testing.T) {
	_, _, err := Select("vehicles", DialectPostgres).Where("type", "IN", []any{}).Build()
	assert.True(t, errs.IsInvalidInput(err))

	_, _, err = Select("vehicles", DialectPostgres).Where("type", "IN", "car").Build()
	assert.True(t, errs.IsInvalidInput(err))
}
