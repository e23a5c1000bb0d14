package validator_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/postbox/pkg/validator"
)

type attachment struct {
	Filename string `json:"filename" validate:"required"`
	Content  string `json:"content" validate:"required,base64"`
}

type request struct {
	Recipient   string       `json:"recipient" validate:"required,email"`
	Recurrence  string       `json:"recurrence" validate:"omitempty,oneof=daily weekly monthly"`
	Attachments []attachment `json:"attachments" validate:"dive"`
	Limit       int          `json:"limit" validate:"min=0,max=100"`
}

func TestStruct_Valid(t *testing.T) {
	t.Parallel()

	err := validator.Struct(request{
		Recipient:   "a@b.com",
		Recurrence:  "weekly",
		Attachments: []attachment{{Filename: "f.pdf", Content: "JVBERg=="}},
		Limit:       10,
	})
	require.NoError(t, err)
}

func TestStruct_Invalid(t *testing.T) {
	t.Parallel()

	err := validator.Struct(request{
		Recipient:   "not-an-email",
		Recurrence:  "yearly",
		Attachments: []attachment{{Content: "%%%"}},
		Limit:       500,
	})
	require.Error(t, err)
	require.ErrorIs(t, err, validator.ErrValidation)

	var verrs validator.Errors
	require.True(t, errors.As(err, &verrs))

	fields := verrs.Fields()
	assert.Equal(t, "must be a valid email", fields["recipient"])
	assert.Equal(t, "must be one of [daily weekly monthly]", fields["recurrence"])
	assert.Equal(t, "is required", fields["attachments[0].filename"])
	assert.Equal(t, "must be base64 encoded", fields["attachments[0].content"])
	assert.Equal(t, "must be at most 100", fields["limit"])
	assert.Contains(t, err.Error(), "recipient must be a valid email")
}

func TestField(t *testing.T) {
	t.Parallel()

	err := validator.Field("documentType", "is not supported")
	require.ErrorIs(t, err, validator.ErrValidation)
	assert.Equal(t, "validation failed: documentType is not supported", err.Error())
}
