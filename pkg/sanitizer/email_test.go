package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/placelist/pkg/sanitizer"
)

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"Student@Example.COM", "student@example.com"},
		{"  user@example.com  ", "user@example.com"},
		{"first..last@example.com", "first.last@example.com"},
		{".user.@example.com", "user@example.com"},
		{"not-an-email", "not-an-email"},
		{"a@b@c", "a@b@c"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizer.NormalizeEmail(tt.input))
		})
	}
}

func TestIsEmail(t *testing.T) {
	t.Parallel()

	valid := []string{
		"student@example.com",
		"user+tag@example.co.uk",
		"a@b.co",
	}
	for _, v := range valid {
		assert.True(t, sanitizer.IsEmail(v), v)
	}

	invalid := []string{
		"",
		"   ",
		"plain",
		"@example.com",
		"user@",
		"user@localhost",
		"user@.com",
		"user@example.",
		"Name <user@example.com>",
		"two@at@signs.com",
	}
	for _, v := range invalid {
		assert.False(t, sanitizer.IsEmail(v), v)
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "st***@example.com", sanitizer.MaskEmail("student@example.com"))
	assert.Equal(t, "a**@example.com", sanitizer.MaskEmail("abc@example.com"))
	assert.Equal(t, "*@example.com", sanitizer.MaskEmail("a@example.com"))
	assert.Equal(t, "***", sanitizer.MaskEmail("garbage"))
}
