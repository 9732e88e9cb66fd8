// Package auth covers the two dashboard sign-in steps: activation key check
// and company user login.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"attendance-monitor/internal/core"
	"attendance-monitor/internal/models"
)

var (
	ErrInvalidKey         = errors.New("invalid or inactive activation key")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

// KeyInfo is what the dashboard needs after a successful key check.
type KeyInfo struct {
	ID            uint   `json:"id"`
	ActivationKey string `json:"activation_key"`
	CompanyName   string `json:"company_name"`
}

// UserInfo is the public view of a logged-in user.
type UserInfo struct {
	ID            uint   `json:"id"`
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	CompanyName   string `json:"company_name"`
	ActivationKey string `json:"activation_key,omitempty"`
}

// HashPassword returns the hex SHA-256 digest stored in password_hash.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyKey looks up an active activation key. Keys are matched upper-cased.
func (s *Service) VerifyKey(ctx context.Context, key string) (*KeyInfo, error) {
	if err := core.Required(core.Field{Name: "activation_key", Value: key}); err != nil {
		return nil, err
	}

	var rows []models.ActivationKey
	err := s.db.WithContext(ctx).
		Where("activation_key = ? AND is_active = ?", strings.ToUpper(strings.TrimSpace(key)), true).
		Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to verify activation key: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrInvalidKey
	}

	k := rows[0]
	return &KeyInfo{ID: k.ID, ActivationKey: k.ActivationKey, CompanyName: k.CompanyName}, nil
}

// Login checks the password against the stored digest in constant time.
// When adminOnly is set, users without the admin role are rejected with the
// same error as a bad password.
func (s *Service) Login(ctx context.Context, username, password string, adminOnly bool) (*UserInfo, error) {
	if err := core.Required(
		core.Field{Name: "username", Value: username},
		core.Field{Name: "password", Value: password},
	); err != nil {
		return nil, err
	}

	var users []models.CompanyUser
	err := s.db.WithContext(ctx).
		Where("username = ? AND is_active = ?", username, true).
		Order("id ASC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	digest := []byte(HashPassword(password))
	for _, u := range users {
		if subtle.ConstantTimeCompare([]byte(u.PasswordHash), digest) != 1 {
			continue
		}
		if adminOnly && u.Role() != "admin" {
			break
		}
		return s.userInfo(ctx, u)
	}

	s.log.Warn("Rejected login", zap.String("username", username), zap.Bool("admin_only", adminOnly))
	return nil, ErrInvalidCredentials
}

// ListUsers returns the company's users, newest first.
func (s *Service) ListUsers(ctx context.Context, company string) ([]UserInfo, error) {
	if err := core.Required(core.Field{Name: "company_name", Value: company}); err != nil {
		return nil, err
	}

	var users []models.CompanyUser
	err := s.db.WithContext(ctx).Where("company_name = ?", company).
		Order("created_at DESC").Order("id DESC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, toUserInfo(u))
	}
	return out, nil
}

func (s *Service) userInfo(ctx context.Context, u models.CompanyUser) (*UserInfo, error) {
	info := toUserInfo(u)
	if u.ActivationKeyID == nil {
		return &info, nil
	}

	var keys []models.ActivationKey
	if err := s.db.WithContext(ctx).Where("id = ?", *u.ActivationKeyID).Limit(1).Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("failed to load activation key: %w", err)
	}
	if len(keys) > 0 {
		info.ActivationKey = keys[0].ActivationKey
	}
	return &info, nil
}

func toUserInfo(u models.CompanyUser) UserInfo {
	fullName := u.FullName
	if fullName == "" {
		fullName = u.Username
	}
	return UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		FullName:    fullName,
		Email:       u.Email,
		Role:        u.Role(),
		CompanyName: u.CompanyName,
	}
}
