package repository

import (
	"interview_pilot_backend/internal/model"

	"gorm.io/gorm"
)

type CandidateRepository struct {
	DB *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) *CandidateRepository {
	return &CandidateRepository{DB: db}
}

func (r *CandidateRepository) Create(c *model.Candidate) error {
	return r.DB.Create(c).Error
}

func (r *CandidateRepository) FindByID(id string) (*model.Candidate, error) {
	var c model.Candidate
	err := r.DB.First(&c, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CandidateRepository) Update(c *model.Candidate) error {
	return r.DB.Save(c).Error
}

// List 支持按姓名/邮箱模糊搜索，排序交由 service 层在合并归档分数后处理
func (r *CandidateRepository) List(search string, page, limit int) ([]model.Candidate, int64, error) {
	var cs []model.Candidate
	var total int64
	query := r.DB.Model(&model.Candidate{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&cs).Error
	return cs, total, err
}

// Delete 删除候选人并级联删除其归档记录
func (r *CandidateRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("candidate_id = ?", id).Delete(&model.InterviewArchive{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Candidate{}, "id = ?", id).Error
	})
}
