package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
	"github.com/d60-Lab/feedline/internal/repository"
	"github.com/d60-Lab/feedline/pkg/logger"
)

// GroupService 群组与管理员
type GroupService interface {
	// CreateGroup 创建者成为管理员并订阅该群组
	CreateGroup(ctx context.Context, ownerID string, in CreateFeedInput) (*model.Feed, error)
	AddAdministrator(ctx context.Context, actorID, groupName, username string) error
	// RemoveAdministrator 最后一个管理员不能被移除
	RemoveAdministrator(ctx context.Context, actorID, groupName, username string) error
	Administrators(ctx context.Context, groupName string) ([]*model.Feed, error)
}

type groupService struct {
	repos *repository.Repositories
	feeds *feedService
	rel   *relationshipService
}

func NewGroupService(repos *repository.Repositories) GroupService {
	return &groupService{
		repos: repos,
		feeds: &feedService{repos: repos},
		rel:   &relationshipService{repos: repos},
	}
}

func (s *groupService) CreateGroup(ctx context.Context, ownerID string, in CreateFeedInput) (*model.Feed, error) {
	owner, err := s.repos.Feeds.FindByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !owner.IsUser() {
		return nil, apperr.Forbidden("Only users can create groups")
	}
	g, err := s.feeds.create(ctx, model.FeedKindGroup, in)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Feeds.AddAdministrator(ctx, g.ID, ownerID, nowFunc()); err != nil {
		return nil, err
	}
	postsID, err := s.repos.Feeds.TimelineID(ctx, g.ID, model.PurposePosts)
	if err != nil {
		return nil, err
	}
	tl, err := s.repos.Timelines.FindByID(ctx, postsID)
	if err != nil {
		return nil, err
	}
	if err := s.rel.subscribe(ctx, ownerID, tl); err != nil {
		return nil, err
	}
	logger.Info("group created", zap.String("group", g.Username), zap.String("owner", ownerID))
	return g, nil
}

// adminGroup 取出群组并确认 actor 是管理员
func (s *groupService) adminGroup(ctx context.Context, actorID, groupName string) (*model.Feed, []string, error) {
	g, err := s.repos.Feeds.FindByUsername(ctx, groupName)
	if err != nil {
		return nil, nil, err
	}
	if !capabilityOf(g.Kind).administered {
		return nil, nil, apperr.NotFound("Group not found")
	}
	admins, err := s.repos.Feeds.AdministratorIDs(ctx, g.ID)
	if err != nil {
		return nil, nil, err
	}
	if !contains(admins, actorID) {
		return nil, nil, apperr.Forbidden("You aren't an administrator of this group")
	}
	return g, admins, nil
}

func (s *groupService) AddAdministrator(ctx context.Context, actorID, groupName, username string) error {
	g, admins, err := s.adminGroup(ctx, actorID, groupName)
	if err != nil {
		return err
	}
	u, err := s.repos.Feeds.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !u.IsUser() {
		return apperr.Validation("Only users can be administrators")
	}
	if contains(admins, u.ID) {
		return nil
	}
	return s.repos.Feeds.AddAdministrator(ctx, g.ID, u.ID, nowFunc())
}

func (s *groupService) RemoveAdministrator(ctx context.Context, actorID, groupName, username string) error {
	g, admins, err := s.adminGroup(ctx, actorID, groupName)
	if err != nil {
		return err
	}
	u, err := s.repos.Feeds.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !contains(admins, u.ID) {
		return apperr.Validation("User is not an administrator")
	}
	if len(admins) == 1 {
		return apperr.Forbidden("Cannot remove last administrator")
	}
	return s.repos.Feeds.RemoveAdministrator(ctx, g.ID, u.ID)
}

func (s *groupService) Administrators(ctx context.Context, groupName string) ([]*model.Feed, error) {
	g, err := s.repos.Feeds.FindByUsername(ctx, groupName)
	if err != nil {
		return nil, err
	}
	ids, err := s.repos.Feeds.AdministratorIDs(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	return s.repos.Feeds.FindMany(ctx, ids)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
