package auth

import (
	"crypto/subtle"
	"fmt"

	e "github.com/gartstein/staffing/internal/crm/errors"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an account of the mock credential service.
type User struct {
	ID       string `yaml:"id" toml:"id"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	Role     Role   `yaml:"role" toml:"role"`
}

// DefaultUsers are the two built-in demo accounts.
func DefaultUsers() []User {
	return []User{
		{ID: "1", Username: "admin", Password: "admin123", Role: RoleAdmin},
		{ID: "2", Username: "user", Password: "user123", Role: RoleUser},
	}
}

// Authenticate returns the user matching the credentials.
func Authenticate(users []User, username, password string) (User, error) {
	for _, u := range users {
		if u.Username == username && subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) == 1 {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: invalid username or password", e.ErrUnauthenticated)
}
