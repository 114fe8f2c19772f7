package mockapi

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type RoleType string

const (
	RoleUser      RoleType = "user"
	RoleAdmin     RoleType = "admin"
	RoleModerator RoleType = "moderator"
)

var ErrUserNotFound = errors.New("user not found")

// User is the account record held by the fake API.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // never serialize
	Avatar       string    `json:"avatar,omitempty"`
	Workspaces   []string  `json:"workspaces"`
	Role         RoleType  `json:"role,omitempty"`
	DateJoined   time.Time `json:"-"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// UserRepo stores users keyed by id with an email index.
type UserRepo interface {
	Upsert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
}

type memoryUserRepo struct {
	users    map[string]*User
	emailIDs map[string]string // email to user id
	lock     sync.RWMutex
}

var _ UserRepo = (*memoryUserRepo)(nil)

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		users:    make(map[string]*User),
		emailIDs: make(map[string]string),
	}
}

func (ur *memoryUserRepo) Upsert(user *User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.emailIDs[user.Email] = user.ID
	return nil
}

func (ur *memoryUserRepo) GetByEmail(email string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIDs[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return ur.users[id], nil
}

func (ur *memoryUserRepo) GetByID(id string) (*User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// SeedUser is a demo account created when the server starts.
type SeedUser struct {
	Email      string
	Name       string
	Password   string
	Role       RoleType
	Workspaces []string
}

// DefaultSeedUsers are the demo accounts for local development.
func DefaultSeedUsers() []SeedUser {
	return []SeedUser{
		{Email: "demo@example.com", Name: "Demo User", Password: "Password123", Role: RoleUser, Workspaces: []string{"personal"}},
		{Email: "admin@example.com", Name: "Admin User", Password: "Admin12345", Role: RoleAdmin, Workspaces: []string{"personal", "team"}},
	}
}
