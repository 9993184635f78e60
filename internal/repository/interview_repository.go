package repository

import (
	"interview_pilot_backend/internal/model"

	"gorm.io/gorm"
)

type InterviewRepository struct {
	DB *gorm.DB
}

func NewInterviewRepository(db *gorm.DB) *InterviewRepository {
	return &InterviewRepository{DB: db}
}

func (r *InterviewRepository) CreateArchive(a *model.InterviewArchive) error {
	return r.DB.Create(a).Error
}

// FindLatestByCandidate 同一候选人重启面试后可能有多条归档，取最新
func (r *InterviewRepository) FindLatestByCandidate(candidateID string) (*model.InterviewArchive, error) {
	var a model.InterviewArchive
	err := r.DB.Where("candidate_id = ?", candidateID).Order("completed_at desc").First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *InterviewRepository) ListByCandidates(candidateIDs []string) ([]model.InterviewArchive, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}
	var as []model.InterviewArchive
	err := r.DB.Where("candidate_id IN ?", candidateIDs).Order("completed_at desc").Find(&as).Error
	return as, err
}

func (r *InterviewRepository) DeleteByCandidate(candidateID string) error {
	return r.DB.Where("candidate_id = ?", candidateID).Delete(&model.InterviewArchive{}).Error
}
