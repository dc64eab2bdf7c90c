package data

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hafizmfadli/go-review/internal/validator"
)

func TestValidateUsernameRejectsMe(t *testing.T) {
	v := validator.New()
	ValidateUsername(v, "me")
	assert.Equal(t, `"me" cannot be used as a username`, v.Errors["username"])

	for _, name := range []string{"meme", "Me2", "alice", "bob.smith"} {
		v := validator.New()
		ValidateUsername(v, name)
		assert.True(t, v.Valid(), name)
	}
}

func TestValidateUser(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		invalid []string
	}{
		{"valid", User{Username: "alice", Email: "alice@example.com", Role: RoleModerator}, nil},
		{"missing fields", User{Role: RoleUser}, []string{"username", "email"}},
		{"bad role", User{Username: "alice", Email: "alice@example.com", Role: "root"}, []string{"role"}},
		{"long name", User{Username: "alice", Email: "alice@example.com", Role: RoleUser, FirstName: strings.Repeat("a", 151)}, []string{"first_name"}},
		{"bad username chars", User{Username: "al ice", Email: "alice@example.com", Role: RoleUser}, []string{"username"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New()
			ValidateUser(v, &tt.user)
			assert.Len(t, v.Errors, len(tt.invalid))
			for _, key := range tt.invalid {
				assert.Contains(t, v.Errors, key)
			}
		})
	}
}

func TestAnonymousUser(t *testing.T) {
	assert.True(t, AnonymousUser.IsAnonymous())
	assert.False(t, (&User{}).IsAnonymous())
}

func TestValidateTermAndReview(t *testing.T) {
	v := validator.New()
	ValidateTerm(v, &Term{Name: "Drama", Slug: "drama"})
	assert.True(t, v.Valid())

	v = validator.New()
	ValidateTerm(v, &Term{Name: "", Slug: "not a slug"})
	assert.Contains(t, v.Errors, "name")
	assert.Contains(t, v.Errors, "slug")

	for score, ok := range map[int]bool{0: false, 1: true, 10: true, 11: false} {
		v := validator.New()
		ValidateReview(v, &Review{Text: "great", Score: score})
		assert.Equal(t, ok, v.Valid(), score)
	}

	v = validator.New()
	ValidateComment(v, &Comment{Text: "  "})
	assert.Contains(t, v.Errors, "text")
}
