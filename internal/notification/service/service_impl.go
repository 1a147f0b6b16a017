package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/medilink/medilink/internal/clock"
	"github.com/medilink/medilink/internal/notification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("notification.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, tx *gorm.DB, input domain.CreateInput) (*domain.Notification, error) {
	userID := strings.TrimSpace(input.UserID)
	title := strings.TrimSpace(input.Title)
	if userID == "" || title == "" {
		return nil, domain.ErrInvalidInput
	}
	switch input.Type {
	case domain.TypeOrderUpdate, domain.TypeSubscriptionUpdate:
	default:
		return nil, domain.ErrInvalidInput
	}

	if tx == nil {
		tx = s.db
	}

	n := &domain.Notification{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Type:           input.Type,
		Title:          title,
		Message:        strings.TrimSpace(input.Message),
		RelatedOrderID: input.RelatedOrderID,
		CreatedAt:      s.clock.Now(ctx),
	}
	if err := s.repo.Insert(ctx, tx, n); err != nil {
		return nil, err
	}

	s.log.Debug("notification created",
		zap.String("user_id", userID),
		zap.String("type", string(n.Type)),
		zap.String("title", n.Title))
	return n, nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]domain.Notification, error) {
	return s.repo.ListByUserID(ctx, s.db, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, userID string, id snowflake.ID) error {
	ok, err := s.repo.MarkRead(ctx, s.db, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}
