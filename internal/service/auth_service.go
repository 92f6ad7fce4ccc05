package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// RegisterInput 注册
type RegisterInput struct {
	Username   string `json:"username" validate:"required,alphanum,min=3,max=25,username"`
	ScreenName string `json:"screenName" validate:"omitempty,min=3,max=25"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required,min=4,max=72"`
	IsPrivate  bool   `json:"isPrivate"`
}

// AuthService 只负责把请求解析成一个 feed id，不涉及会话管理
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.Feed, string, error)
	Login(ctx context.Context, username, password string) (*model.Feed, string, error)
	// ParseToken 返回 token 对应的 feed id
	ParseToken(token string) (string, error)
}

type authService struct {
	repos  *repository.Repositories
	feeds  FeedService
	secret []byte
	ttl    time.Duration
}

func NewAuthService(repos *repository.Repositories, feeds FeedService, secret string, ttl time.Duration) AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &authService{repos: repos, feeds: feeds, secret: []byte(secret), ttl: ttl}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.Feed, string, error) {
	if err := validateStruct(in); err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperr.Infra(err, "hash password")
	}
	f, err := s.feeds.CreateUser(ctx, CreateFeedInput{Username: in.Username, ScreenName: in.ScreenName, IsPrivate: in.IsPrivate})
	if err != nil {
		return nil, "", err
	}
	acc := &model.Account{FeedID: f.ID, Username: f.Username, Email: in.Email, PasswordHash: string(hash)}
	if err := s.repos.Accounts.Create(ctx, acc); err != nil {
		logger.Error("create account after feed", zap.String("feed", f.ID), zap.Error(err))
		return nil, "", err
	}
	token, err := s.issue(f.ID)
	if err != nil {
		return nil, "", err
	}
	return f, token, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*model.Feed, string, error) {
	acc, err := s.repos.Accounts.FindByUsername(ctx, username)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	f, err := s.feeds.GetByID(ctx, acc.FeedID)
	if err != nil {
		return nil, "", err
	}
	token, err := s.issue(f.ID)
	if err != nil {
		return nil, "", err
	}
	return f, token, nil
}

func (s *authService) issue(feedID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   feedID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Infra(err, "sign token")
	}
	return token, nil
}

func (s *authService) ParseToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
