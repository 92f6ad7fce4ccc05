package repository

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

// AccountRepository 登录凭证，存关系库
type AccountRepository interface {
	Create(ctx context.Context, a *model.Account) error
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	FindByFeedID(ctx context.Context, feedID string) (*model.Account, error)
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository { return &accountRepository{db: db} }

func (r *accountRepository) Create(ctx context.Context, a *model.Account) error {
	a.Username = strings.ToLower(a.Username)
	return errors.Wrapf(r.db.WithContext(ctx).Create(a).Error, "create account %s", a.Username)
}

func (r *accountRepository) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).Where("username = ?", strings.ToLower(username)).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Account not found")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load account %s", username)
	}
	return &a, nil
}

func (r *accountRepository) FindByFeedID(ctx context.Context, feedID string) (*model.Account, error) {
	var a model.Account
	err := r.db.WithContext(ctx).Where("feed_id = ?", feedID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Account not found")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load account of %s", feedID)
	}
	return &a, nil
}
