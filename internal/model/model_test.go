package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func strPtr(s string) *string { return &s }

func TestThing_Validate(t *testing.T) {
	tests := []struct {
		name     string
		thing    Thing
		messages []string
	}{
		{"valid", Thing{Name: "Widget", Description: "A widget"}, nil},
		{"blank name", Thing{Name: ""}, []string{"Name can't be blank"}},
		{"whitespace name", Thing{Name: "   "}, []string{"Name can't be blank"}},
		{"too long", Thing{Name: strings.Repeat("x", NameMaxLength+1)}, []string{"Name is too long (maximum is 255 characters)"}},
		{"max length", Thing{Name: strings.Repeat("x", NameMaxLength)}, nil},
		{"empty description", Thing{Name: "Gadget"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.thing.Validate()
			if tt.messages == nil {
				assert.NoError(t, err)
				return
			}
			verrs, ok := AsValidationErrors(err)
			require.True(t, ok, "expected ValidationErrors, got %v", err)
			assert.Equal(t, tt.messages, verrs.FullMessages())
		})
	}
}

func TestThing_Assign(t *testing.T) {
	thing := NewThing(ThingAttributes{Name: strPtr("  Widget "), Description: strPtr("first")})
	assert.Equal(t, "Widget", thing.Name)
	assert.Equal(t, "first", thing.Description)
	assert.False(t, thing.Persisted())

	thing.Assign(ThingAttributes{Description: strPtr("second")})
	assert.Equal(t, "Widget", thing.Name, "nil attributes are left alone")
	assert.Equal(t, "second", thing.Description)
}

func TestValidationErrors(t *testing.T) {
	errs := NewValidationErrors()
	assert.False(t, errs.Any())

	errs.Add("name", "can't be blank")
	errs.Add("password_confirmation", "doesn't match Password")
	errs.Add("name", "has already been taken")

	assert.True(t, errs.Any())
	assert.Equal(t, 3, errs.Count())
	assert.Equal(t, []string{"can't be blank", "has already been taken"}, errs.On("name"))
	assert.Equal(t, []string{
		"Name can't be blank",
		"Name has already been taken",
		"Password confirmation doesn't match Password",
	}, errs.FullMessages())
	assert.Equal(t, "validation failed: Name can't be blank, Name has already been taken, Password confirmation doesn't match Password", errs.Error())
}

func TestUnderscoreAndHumanize(t *testing.T) {
	assert.Equal(t, "password_confirmation", Underscore("PasswordConfirmation"))
	assert.Equal(t, "name", Underscore("Name"))
	assert.Equal(t, "Password confirmation", Humanize("password_confirmation"))
}

func TestNewUser(t *testing.T) {
	PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { PasswordCost = bcrypt.DefaultCost })

	u, err := NewUser("  Ada@Example.com ", "secret1", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEmpty(t, u.PasswordDigest)
	assert.Empty(t, u.Password)
	assert.True(t, u.Authenticate("secret1"))
	assert.False(t, u.Authenticate("wrong"))
}

func TestNewUser_Invalid(t *testing.T) {
	tests := []struct {
		name         string
		email        string
		password     string
		confirmation string
		messages     []string
	}{
		{"blank", "", "", "", []string{"Email can't be blank", "Password can't be blank"}},
		{"bad email", "nope", "secret1", "secret1", []string{"Email is invalid"}},
		{"short password", "a@b.co", "abc", "abc", []string{"Password is too short (minimum is 6 characters)"}},
		{"mismatch", "a@b.co", "secret1", "secret2", []string{"Password confirmation doesn't match Password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUser(tt.email, tt.password, tt.confirmation)
			verrs, ok := AsValidationErrors(err)
			require.True(t, ok, "expected ValidationErrors, got %v", err)
			assert.Equal(t, tt.messages, verrs.FullMessages())
		})
	}
}

func TestValidationErrors_NilReceiver(t *testing.T) {
	var errs *ValidationErrors
	assert.False(t, errs.Any())
	assert.Zero(t, errs.Count())
	assert.Nil(t, errs.On("name"))
	assert.Empty(t, errs.FullMessages())
	assert.Equal(t, map[string][]string{}, errs.Map())
}
