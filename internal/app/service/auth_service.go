package service

import (
	"errors"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

type AuthService interface {
	Register(email, password, name, phone string) (*model.User, *util.TokenPair, error)
	Login(email, password string) (*model.User, *util.TokenPair, error)
	GetUserByID(id uint) (*model.User, error)
	UpdateProfile(userID uint, name, phone, address, city string) (*model.User, error)
}

type authService struct {
	userRepo      repository.UserRepository
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, accessExpiry, refreshExpiry time.Duration) AuthService {
	return &authService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func (s *authService) Register(email, password, name, phone string) (*model.User, *util.TokenPair, error) {
	logger.Info("Registering new user", map[string]interface{}{
		"email": email,
	})

	if _, err := s.userRepo.FindByEmail(email); err == nil {
		logger.Warn("Registration rejected: email already exists", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		logger.Error("Failed to hash password", err)
		return nil, nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Phone:        phone,
		Role:         model.RoleCustomer,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, nil, err
	}

	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), s.jwtSecret, s.accessExpiry, s.refreshExpiry)
	if err != nil {
		logger.Error("Failed to generate tokens after registration", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, err
	}

	logger.Info("User registered", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return user, tokens, nil
}

func (s *authService) Login(email, password string) (*model.User, *util.TokenPair, error) {
	logger.Info("User login attempt", map[string]interface{}{
		"email": email,
	})

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: wrong password", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrInvalidCredentials
	}

	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), s.jwtSecret, s.accessExpiry, s.refreshExpiry)
	if err != nil {
		logger.Error("Failed to generate tokens on login", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, err
	}

	logger.Info("User logged in", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, tokens, nil
}

func (s *authService) GetUserByID(id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) UpdateProfile(userID uint, name, phone, address, city string) (*model.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		user.Name = name
	}
	if phone != "" {
		user.Phone = phone
	}
	if address != "" {
		user.Address = address
	}
	if city != "" {
		user.City = city
	}

	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	logger.Info("User profile updated", map[string]interface{}{
		"user_id": user.ID,
	})
	return user, nil
}
