package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"timed-quiz-service/internal/domain"
)

const minPasswordLength = 6

// RegisterInput is the registration form.
type RegisterInput struct {
	FirstName string
	LastName  string
	UserName  string
	Password  string
}

// UserService registers users and checks their credentials.
type UserService struct {
	users UserStore
	cost  int
}

func NewUserService(users UserStore) *UserService {
	return &UserService{users: users, cost: bcrypt.DefaultCost}
}

// NewUserServiceWithCost lets tests use a cheap bcrypt cost.
func NewUserServiceWithCost(users UserStore, cost int) *UserService {
	return &UserService{users: users, cost: cost}
}

// Register validates the form and stores the user with a hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	userName := strings.TrimSpace(in.UserName)
	if first == "" || last == "" || userName == "" || in.Password == "" {
		return domain.User{}, domain.NewValidationError("form", "All fields are required")
	}
	if len(in.Password) < minPasswordLength {
		return domain.User{}, domain.NewValidationError("password", fmt.Sprintf("Password must be at least %d characters long", minPasswordLength))
	}

	_, err := s.users.GetUserByUserName(ctx, userName)
	if err == nil {
		return domain.User{}, domain.ErrUsernameTaken
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		FirstName:    first,
		LastName:     last,
		UserName:     userName,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Authenticate returns the user whose name and password match.
func (s *UserService) Authenticate(ctx context.Context, userName, password string) (domain.User, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" {
		return domain.User{}, domain.NewValidationError("form", "Username and password are required")
	}
	user, err := s.users.GetUserByUserName(ctx, userName)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return user, nil
}

// Get looks a user up by ID.
func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	if id <= 0 {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return s.users.GetUserByID(ctx, id)
}
