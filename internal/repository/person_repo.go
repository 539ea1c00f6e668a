package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fed_comment_server/internal/model"
)

type PersonRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// Create 创建用户
func (r *PersonRepository) Create(person *model.Person) error {
	return r.db.Create(person).Error
}

// Upsert 按 ap_id 插入或刷新远程用户资料
func (r *PersonRepository) Upsert(person *model.Person) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ap_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "inbox_url", "admin", "updated_at"}),
	}).Create(person).Error
	if err != nil {
		return err
	}
	// 冲突更新时各驱动回填的主键不一致，重新读取
	found, err := r.GetByApID(person.ApID)
	if err != nil {
		return err
	}
	*person = *found
	return nil
}

// GetByID 根据 ID 获取用户
func (r *PersonRepository) GetByID(id int64) (*model.Person, error) {
	var person model.Person
	err := r.db.Where("id = ?", id).First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// GetByApID 根据 ap_id 获取用户
func (r *PersonRepository) GetByApID(apID string) (*model.Person, error) {
	var person model.Person
	err := r.db.Where("ap_id = ?", apID).First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// GetLocalByName 获取本地用户
func (r *PersonRepository) GetLocalByName(name string) (*model.Person, error) {
	var person model.Person
	err := r.db.Where("name = ? AND local = ?", name, true).First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// GetByNameAndDomain 根据 name@domain 获取已知用户
func (r *PersonRepository) GetByNameAndDomain(name, domain string) (*model.Person, error) {
	var person model.Person
	err := r.db.Where("name = ? AND domain = ?", name, domain).First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// ListByIDs 批量获取用户
func (r *PersonRepository) ListByIDs(ids []int64) ([]*model.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var persons []*model.Person
	err := r.db.Where("id IN ?", ids).Find(&persons).Error
	return persons, err
}
