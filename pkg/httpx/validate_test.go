package httpx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type validateSubject struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=admin staff"`
	Note  string `json:"note,omitempty" validate:"omitempty,max=5"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid value returns nil", func(t *testing.T) {
		fields := ValidateStruct(validateSubject{Email: "a@example.com", Role: "staff"})
		require.Nil(t, fields)
	})

	t.Run("reports json field names", func(t *testing.T) {
		fields := ValidateStruct(validateSubject{Email: "not-an-email", Role: "owner"})
		require.Len(t, fields, 2)
		require.Contains(t, fields, "email")
		require.Contains(t, fields, "role")
		require.Equal(t, "must be a valid email address", fields["email"])
		require.Equal(t, "must be one of: admin, staff", fields["role"])
	})

	t.Run("missing required fields", func(t *testing.T) {
		fields := ValidateStruct(validateSubject{})
		require.Equal(t, "this field is required", fields["email"])
		require.Equal(t, "this field is required", fields["role"])
	})

	t.Run("max length message", func(t *testing.T) {
		fields := ValidateStruct(validateSubject{Email: "a@example.com", Role: "admin", Note: "too long"})
		require.Equal(t, "must be at most 5 characters", fields["note"])
	})
}
