package services

import (
	"context"
	"errors"
	"strings"

	"nexus_go/models"
	"nexus_go/utils"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidCredentials = errors.New("the provided credentials are incorrect")
	ErrInactiveAccount    = errors.New("your account is not active. Please contact administrator")
)

type UserInput struct {
	FirstName  string `json:"first_name" validate:"required,max=255"`
	MiddleName string `json:"middle_name" validate:"max=255"`
	LastName   string `json:"last_name" validate:"required,max=255"`
	Email      string `json:"email" validate:"required,email,max=255"`
	Password   string `json:"password" validate:"omitempty,min=8,max=72"`
	StudentID  string `json:"student_id" validate:"max=50"`
	Program    string `json:"program" validate:"max=255"`
	Year       string `json:"year" validate:"max=50"`
	Role       string `json:"role" validate:"omitempty,user_role"`
	Status     string `json:"status" validate:"omitempty,account_status"`
}

// UserService manages member accounts and password login.
type UserService struct {
	store Store
	clock Clock
	log   *logrus.Entry
}

func NewUserService(store Store, clock Clock) *UserService {
	return &UserService{store: store, clock: clock, log: logrus.WithField("component", "users")}
}

func (s *UserService) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	return s.store.ListUsers(ctx, filter)
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.store.FindUser(ctx, id)
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	verr := validateStruct(in)
	if in.Password == "" {
		verr.Add("password", "The password field is required.")
	}
	if err := s.checkUnique(ctx, verr, 0, in); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	u := &models.User{Role: models.RoleMember, Status: models.UserStatusActive}
	if err := s.apply(u, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", u.ID).Info("User created")
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id uint, in UserInput) (*models.User, error) {
	u, err := s.store.FindUser(ctx, id)
	if err != nil {
		return nil, err
	}
	verr := validateStruct(in)
	if err := s.checkUnique(ctx, verr, id, in); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := s.apply(u, in); err != nil {
		return nil, err
	}
	if err := s.store.SaveUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes an account. Callers may not delete themselves.
func (s *UserService) Delete(ctx context.Context, id, actorID uint) error {
	if id == actorID {
		return NewValidationError("id", "You cannot delete your own account.")
	}
	if _, err := s.store.FindUser(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteUser(ctx, id)
}

// Authenticate checks email and password and stamps last_login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	verr := &ValidationError{}
	if strings.TrimSpace(email) == "" {
		verr.Add("email", "The email field is required.")
	}
	if password == "" {
		verr.Add("password", "The password field is required.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	u, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := utils.CheckPassword(password, u.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive() {
		return nil, ErrInactiveAccount
	}

	now := s.clock.Now()
	u.LastLogin = &now
	if err := s.store.SaveUser(ctx, u); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("Failed to record last login")
	}
	return u, nil
}

func (s *UserService) checkUnique(ctx context.Context, verr *ValidationError, selfID uint, in UserInput) error {
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		other, err := s.store.FindUserByEmail(ctx, email)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if other != nil && other.ID != selfID {
			verr.Add("email", "The email has already been taken.")
		}
	}
	if sid := strings.TrimSpace(in.StudentID); sid != "" {
		other, err := s.store.FindUserByStudentID(ctx, sid)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if other != nil && other.ID != selfID {
			verr.Add("student_id", "The student id has already been taken.")
		}
	}
	return nil
}

func (s *UserService) apply(u *models.User, in UserInput) error {
	u.FirstName = strings.TrimSpace(in.FirstName)
	u.MiddleName = strings.TrimSpace(in.MiddleName)
	u.LastName = strings.TrimSpace(in.LastName)
	u.Name = u.FullName()
	u.Email = strings.ToLower(strings.TrimSpace(in.Email))
	u.Program = strings.TrimSpace(in.Program)
	u.Year = strings.TrimSpace(in.Year)
	if sid := strings.TrimSpace(in.StudentID); sid != "" {
		u.StudentID = &sid
	} else {
		u.StudentID = nil
	}
	if in.Role != "" {
		u.Role = in.Role
	}
	if in.Status != "" {
		u.Status = in.Status
	}
	if in.Password != "" {
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			return err
		}
		u.Password = hash
	}
	return nil
}
