package service

import (
	"context"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
)

// Visibility 读时可见性判断；所有读路径都必须经过这里
type Visibility struct {
	repos *repository.Repositories
}

func NewVisibility(repos *repository.Repositories) *Visibility { return &Visibility{repos: repos} }

// ValidateCanShow readerID 为空表示匿名
func (v *Visibility) ValidateCanShow(ctx context.Context, readerID string, post *model.Post) (bool, error) {
	w, err := v.viewer(ctx, readerID)
	if err != nil {
		return false, err
	}
	return w.canShow(ctx, post)
}

// mustShow 不可见时返回 NotFound，避免泄露帖子是否存在
func (v *Visibility) mustShow(ctx context.Context, readerID string, post *model.Post) error {
	ok, err := v.ValidateCanShow(ctx, readerID, post)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("Can't find post")
	}
	return nil
}

// viewer 缓存一个读者的订阅与屏蔽名单，用于批量判断
type viewer struct {
	repos    *repository.Repositories
	readerID string
	subs     map[string]struct{}
	bans     map[string]struct{}
	private  map[string]bool
}

func (v *Visibility) viewer(ctx context.Context, readerID string) (*viewer, error) {
	w := &viewer{
		repos:    v.repos,
		readerID: readerID,
		subs:     map[string]struct{}{},
		bans:     map[string]struct{}{},
		private:  map[string]bool{},
	}
	if readerID == "" {
		return w, nil
	}
	subs, err := v.repos.Subscriptions.SubscriptionIDs(ctx, readerID)
	if err != nil {
		return nil, err
	}
	for _, id := range subs {
		w.subs[id] = struct{}{}
	}
	bans, err := v.repos.Bans.BanIDs(ctx, readerID)
	if err != nil {
		return nil, err
	}
	for _, id := range bans {
		w.bans[id] = struct{}{}
	}
	return w, nil
}

func (w *viewer) canShow(ctx context.Context, post *model.Post) (bool, error) {
	ok, err := w.baseVisible(ctx, post)
	if err != nil || !ok {
		return false, err
	}
	if w.readerID == "" || w.readerID == post.AuthorID {
		return true, nil
	}
	// 任一方屏蔽了对方都不可见
	if _, banned := w.bans[post.AuthorID]; banned {
		return false, nil
	}
	banned, err := w.repos.Bans.Exists(ctx, post.AuthorID, w.readerID)
	if err != nil {
		return false, err
	}
	return !banned, nil
}

func (w *viewer) baseVisible(ctx context.Context, post *model.Post) (bool, error) {
	ids, err := w.repos.Timelines.TimelineIDsOfPost(ctx, post.ID)
	if err != nil {
		return false, err
	}
	timelines, err := w.repos.Timelines.FindMany(ctx, ids)
	if err != nil {
		return false, err
	}

	for _, tl := range timelines {
		switch tl.Name {
		case model.PurposeEveryone:
			return true, nil
		case model.PurposePosts:
			private, err := w.isPrivate(ctx, tl.OwnerID)
			if err != nil {
				return false, err
			}
			if !private {
				return true, nil
			}
		}
	}

	if w.readerID == "" {
		return false, nil
	}
	if w.readerID == post.AuthorID {
		return true, nil
	}
	for _, tl := range timelines {
		switch tl.Name {
		case model.PurposePosts:
			if _, ok := w.subs[tl.ID]; ok || tl.OwnerID == w.readerID {
				return true, nil
			}
		case model.PurposeDirects:
			if tl.OwnerID == w.readerID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (w *viewer) isPrivate(ctx context.Context, feedID string) (bool, error) {
	if p, ok := w.private[feedID]; ok {
		return p, nil
	}
	f, err := w.repos.Feeds.FindByID(ctx, feedID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		w.private[feedID] = true
		return true, nil
	}
	if err != nil {
		return false, err
	}
	w.private[feedID] = f.IsPrivate
	return f.IsPrivate, nil
}
