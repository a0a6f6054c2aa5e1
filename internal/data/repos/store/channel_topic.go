package store

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/mentat-backend/internal/domain"
	"github.com/yungbote/mentat-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/mentat-backend/internal/pkg/errors"
	"github.com/yungbote/mentat-backend/internal/pkg/logger"
)

type ChannelTopicRepo interface {
	UpsertChannel(dbc dbctx.Context, ch *types.Channel) error
	UpsertTopic(dbc dbctx.Context, t *types.Topic) error
	LinkVideoChannel(dbc dbctx.Context, videoID, channelID string) error
	LinkVideoTopic(dbc dbctx.Context, videoID, normalizedName string) error
	TopicsForVideo(dbc dbctx.Context, videoID string) ([]*types.Topic, error)
}

type channelTopicRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChannelTopicRepo(db *gorm.DB, log *logger.Logger) ChannelTopicRepo {
	return &channelTopicRepo{db: db, log: log.With("repo", "ChannelTopicRepo")}
}

func (r *channelTopicRepo) UpsertChannel(dbc dbctx.Context, ch *types.Channel) error {
	if ch == nil || strings.TrimSpace(ch.ChannelID) == "" {
		return fmt.Errorf("%w: missing channel_id", apperr.ErrInvalidArgument)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	ch.UpdatedAt = time.Now().UTC()
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = ch.UpdatedAt
	}
	return transaction.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_name", "updated_at"}),
	}).Create(ch).Error
}

func (r *channelTopicRepo) UpsertTopic(dbc dbctx.Context, t *types.Topic) error {
	if t == nil || strings.TrimSpace(t.NormalizedName) == "" {
		return fmt.Errorf("%w: missing normalized_name", apperr.ErrInvalidArgument)
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	t.UpdatedAt = time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = t.UpdatedAt
	}
	return transaction.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "normalized_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(t).Error
}

func (r *channelTopicRepo) LinkVideoChannel(dbc dbctx.Context, videoID, channelID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	link := &types.VideoChannel{VideoID: videoID, ChannelID: channelID}
	return transaction.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}, {Name: "channel_id"}},
		DoNothing: true,
	}).Create(link).Error
}

func (r *channelTopicRepo) LinkVideoTopic(dbc dbctx.Context, videoID, normalizedName string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	link := &types.VideoTopic{VideoID: videoID, TopicName: normalizedName}
	return transaction.WithContext(dbc.Ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}, {Name: "topic_name"}},
		DoNothing: true,
	}).Create(link).Error
}

func (r *channelTopicRepo) TopicsForVideo(dbc dbctx.Context, videoID string) ([]*types.Topic, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Topic
	err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN video_topic vt ON vt.topic_name = topic.normalized_name").
		Where("vt.video_id = ?", videoID).
		Order("topic.normalized_name ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
