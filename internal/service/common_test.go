package service

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

func TestValidationErrorListsJSONFields(t *testing.T) {
	type payload struct {
		RoomID string `json:"room_id" validate:"required"`
		Reason string `json:"reason,omitempty" validate:"max=3"`
	}
	err := NewValidator().Struct(payload{Reason: "too long"})
	require.Error(t, err)

	appErr := validationError(err, "invalid reservation payload")
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, map[string]string{"room_id": "required", "reason": "max"}, appErr.Details)

	plain := validationError(errors.New("bad date"), "invalid date")
	assert.Nil(t, plain.Details)
}

func TestLookupError(t *testing.T) {
	assert.Equal(t, appErrors.ErrNotFound.Code, lookupError(sql.ErrNoRows, "room not found", "x").Code)
	assert.Equal(t, appErrors.ErrInternal.Code, lookupError(errors.New("down"), "x", "failed").Code)
}

func TestNewPaginationClamps(t *testing.T) {
	p := newPagination(0, 500, 42)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)
	assert.Equal(t, 42, p.TotalCount)
}
