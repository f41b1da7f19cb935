package store

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/etotom/safarov-shop/internal/docstore"
	"github.com/etotom/safarov-shop/internal/models"
)

// passwordCost is lowered by tests.
var passwordCost = bcrypt.DefaultCost

const minPasswordLength = 6

type UserInput struct {
	Email    string
	Name     string
	Password string
	Role     models.Role
}

type UserPatch struct {
	Name  *string
	Image *string
	Role  *models.Role
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateUser registers a user with a bcrypt-hashed password. Emails are
// unique case-insensitively.
func (s *Store) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var created models.User
	err = s.Users.Mutate(ctx, func(ed *docstore.Editor[models.User, *models.User]) error {
		existing, err := ed.First(docstore.Eq("email", email))
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailTaken
		}
		created = ed.Insert(models.User{
			Email:    email,
			Name:     strings.TrimSpace(in.Name),
			Password: hash,
			Role:     role,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &created, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.Users.FindUnique(ctx, docstore.Eq("email", normalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Authenticate returns the user whose email and password match. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ListUsers pages through users newest first. Password hashes are stripped.
func (s *Store) ListUsers(ctx context.Context, page, size int) (*OffsetPage[models.User], error) {
	page, size, skip := normalizePage(page, size)

	total, err := s.Users.Count(ctx, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	users, err := s.Users.FindMany(ctx, docstore.Query{
		OrderBy: docstore.Desc("createdAt"),
		Skip:    skip,
		Take:    size,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = users[i].Public()
	}

	return newOffsetPage(users, total, page, size), nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *patch.Role)
	}

	user, err := s.Users.Update(ctx, id, func(u *models.User) {
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Image != nil {
			u.Image = *patch.Image
		}
		if patch.Role != nil {
			u.Role = *patch.Role
		}
	})
	if isNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser removes a user together with their cart and addresses. Orders
// are kept for bookkeeping. An admin cannot delete their own account.
func (s *Store) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return ErrCannotDeleteSelf
	}
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	if _, err := s.CartItems.DeleteMany(ctx, docstore.Where(docstore.Eq("userId", id))); err != nil {
		return err
	}
	if _, err := s.Addresses.DeleteMany(ctx, docstore.Where(docstore.Eq("userId", id))); err != nil {
		return err
	}
	return s.Users.Delete(ctx, id)
}
