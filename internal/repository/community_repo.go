package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fed_comment_server/internal/model"
)

type CommunityRepository struct {
	db *gorm.DB
}

func NewCommunityRepository(db *gorm.DB) *CommunityRepository {
	return &CommunityRepository{db: db}
}

// Create 创建社区
func (r *CommunityRepository) Create(community *model.Community) error {
	return r.db.Create(community).Error
}

// Upsert 按 ap_id 插入或刷新远程社区
func (r *CommunityRepository) Upsert(community *model.Community) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ap_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "inbox_url", "updated_at"}),
	}).Create(community).Error
	if err != nil {
		return err
	}
	found, err := r.GetByApID(community.ApID)
	if err != nil {
		return err
	}
	*community = *found
	return nil
}

// GetByID 根据 ID 获取社区
func (r *CommunityRepository) GetByID(id int64) (*model.Community, error) {
	var community model.Community
	err := r.db.Where("id = ?", id).First(&community).Error
	if err != nil {
		return nil, err
	}
	return &community, nil
}

// GetByApID 根据 ap_id 获取社区
func (r *CommunityRepository) GetByApID(apID string) (*model.Community, error) {
	var community model.Community
	err := r.db.Where("ap_id = ?", apID).First(&community).Error
	if err != nil {
		return nil, err
	}
	return &community, nil
}

// GetLocalByName 获取本地社区
func (r *CommunityRepository) GetLocalByName(name string) (*model.Community, error) {
	var community model.Community
	err := r.db.Where("name = ? AND local = ?", name, true).First(&community).Error
	if err != nil {
		return nil, err
	}
	return &community, nil
}

// AddModerator 添加版主（已存在时忽略）
func (r *CommunityRepository) AddModerator(communityID, personID int64) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.CommunityModerator{CommunityID: communityID, PersonID: personID}).Error
}

// SetModerators 把社区版主集合替换为 personIDs
func (r *CommunityRepository) SetModerators(communityID int64, personIDs []int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		stale := tx.Where("community_id = ?", communityID)
		if len(personIDs) > 0 {
			stale = stale.Where("person_id NOT IN ?", personIDs)
		}
		if err := stale.Delete(&model.CommunityModerator{}).Error; err != nil {
			return err
		}
		for _, id := range personIDs {
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.CommunityModerator{CommunityID: communityID, PersonID: id}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// IsModerator 检查是否为社区版主
func (r *CommunityRepository) IsModerator(communityID, personID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.CommunityModerator{}).
		Where("community_id = ? AND person_id = ?", communityID, personID).
		Count(&count).Error
	return count > 0, err
}

// ListModerators 获取社区版主
func (r *CommunityRepository) ListModerators(communityID int64) ([]*model.Person, error) {
	var persons []*model.Person
	err := r.db.
		Joins("JOIN community_moderators ON community_moderators.person_id = persons.id").
		Where("community_moderators.community_id = ?", communityID).
		Order("persons.id ASC").
		Find(&persons).Error
	return persons, err
}

// AddFollower 添加关注（已存在时忽略），返回是否新增
func (r *CommunityRepository) AddFollower(communityID, personID int64) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.CommunityFollower{CommunityID: communityID, PersonID: personID})
	return result.RowsAffected > 0, result.Error
}

// RemoveFollower 取消关注
func (r *CommunityRepository) RemoveFollower(communityID, personID int64) error {
	return r.db.Where("community_id = ? AND person_id = ?", communityID, personID).
		Delete(&model.CommunityFollower{}).Error
}

// ListFollowers 获取社区关注者
func (r *CommunityRepository) ListFollowers(communityID int64) ([]*model.Person, error) {
	var persons []*model.Person
	err := r.db.
		Joins("JOIN community_followers ON community_followers.person_id = persons.id").
		Where("community_followers.community_id = ?", communityID).
		Order("persons.id ASC").
		Find(&persons).Error
	return persons, err
}

// HasLocalFollower 本实例是否有用户关注该社区
func (r *CommunityRepository) HasLocalFollower(communityID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.CommunityFollower{}).
		Joins("JOIN persons ON persons.id = community_followers.person_id").
		Where("community_followers.community_id = ? AND persons.local = ?", communityID, true).
		Count(&count).Error
	return count > 0, err
}

// IsFollower 检查关注关系
func (r *CommunityRepository) IsFollower(communityID, personID int64) (bool, error) {
	var count int64
	err := r.db.Model(&model.CommunityFollower{}).
		Where("community_id = ? AND person_id = ?", communityID, personID).
		Count(&count).Error
	return count > 0, err
}
