package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"account_service/internal/model"
	"account_service/internal/repository"
	"account_service/internal/utils"

	"github.com/google/uuid"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserService provides account management operations
type UserService interface {
	Register(ctx context.Context, req model.RegisterRequest, docs model.DocumentFilenames) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateSelf(ctx context.Context, userID string, req model.UpdateUserRequest, docs model.DocumentFilenames) (*model.User, error)

	// Admin methods
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserByID(ctx context.Context, userID string, req model.AdminUpdateUserRequest, docs model.DocumentFilenames) (*model.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

type userService struct {
	userRepo          repository.UserRepository
	jwtUtil           *utils.JWTUtil
	initialAdminEmail string
}

// NewUserService creates a new UserService
func NewUserService(userRepo repository.UserRepository, jwtUtil *utils.JWTUtil, initialAdminEmail string) UserService {
	return &userService{
		userRepo:          userRepo,
		jwtUtil:           jwtUtil,
		initialAdminEmail: initialAdminEmail,
	}
}

// Register creates a new user account. Email uniqueness is enforced by the
// database index, so a concurrent duplicate registration surfaces as
// ErrEmailTaken rather than a raw constraint error.
func (s *userService) Register(ctx context.Context, req model.RegisterRequest, docs model.DocumentFilenames) (*model.User, error) {
	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	userRole := model.RoleUser
	if s.initialAdminEmail != "" && req.Email == s.initialAdminEmail {
		userRole = model.RoleAdmin
		log.Printf("INFO: User %s is being registered as ADMIN via INITIAL_ADMIN_EMAIL.", req.Email)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hashedPassword,
		Passport:     docs.Passport,
		IDImageFront: docs.IDImageFront,
		IDImageBack:  docs.IDImageBack,
		Role:         userRole,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user in repository: %w", err)
	}

	return user, nil
}

// Login authenticates a user and returns the user plus a signed token
func (s *userService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("error finding user by email: %w", err)
	}
	if user == nil {
		return nil, "", ErrUserNotFound
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwtUtil.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	return user, token, nil
}

// GetProfile returns the user row for an authenticated identity
func (s *userService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateSelf applies the self-service allow-list of field updates
func (s *userService) UpdateSelf(ctx context.Context, userID string, req model.UpdateUserRequest, docs model.DocumentFilenames) (*model.User, error) {
	fields, err := buildUpdateFields(req, docs)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, userID, fields)
}

// ListUsers returns all non-deleted users
func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUserByID applies the admin allow-list of field updates to any user
func (s *userService) UpdateUserByID(ctx context.Context, userID string, req model.AdminUpdateUserRequest, docs model.DocumentFilenames) (*model.User, error) {
	fields, err := buildUpdateFields(req.UpdateUserRequest, docs)
	if err != nil {
		return nil, err
	}
	if req.Role != nil {
		fields["role"] = *req.Role
	}
	return s.applyUpdate(ctx, userID, fields)
}

// DeleteUser soft-deletes a user; the row remains in the table
func (s *userService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.userRepo.SoftDelete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *userService) applyUpdate(ctx context.Context, userID string, fields map[string]any) (*model.User, error) {
	user, err := s.userRepo.Update(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user in repository: %w", err)
	}
	return user, nil
}

// buildUpdateFields maps allow-listed request fields and uploaded document
// names to their columns. Password updates are stored hashed, never verbatim.
func buildUpdateFields(req model.UpdateUserRequest, docs model.DocumentFilenames) (map[string]any, error) {
	fields := make(map[string]any)
	if req.FirstName != nil {
		fields["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		fields["last_name"] = *req.LastName
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.PhoneNumber != nil {
		fields["phone_number"] = *req.PhoneNumber
	}
	if req.Password != nil {
		hashed, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		fields["password_hash"] = hashed
	}
	if docs.Passport != "" {
		fields["passport"] = docs.Passport
	}
	if docs.IDImageFront != "" {
		fields["id_image_front"] = docs.IDImageFront
	}
	if docs.IDImageBack != "" {
		fields["id_image_back"] = docs.IDImageBack
	}
	return fields, nil
}
