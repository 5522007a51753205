package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("create appointment: %w", Storage(base, "save appointment"))

	assert.Equal(t, KindStorage, KindOf(err))
	assert.True(t, Is(err, KindStorage))
	assert.False(t, Is(err, KindMessaging))
	assert.ErrorIs(t, err, base)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindUnknown))
}

func TestValidation_ListsEveryField(t *testing.T) {
	err := Validation(
		FieldError{Field: "insuredId", Message: "insuredId must be 5 digits"},
		FieldError{Field: "countryCode", Message: "countryCode must be one of PE, CL"},
	)

	assert.Equal(t, KindValidation, err.Kind)
	assert.Len(t, FieldsOf(err), 2)
	assert.Contains(t, err.Error(), "insuredId must be 5 digits")
	assert.Contains(t, err.Error(), "countryCode must be one of PE, CL")
}
