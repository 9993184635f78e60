package model

import (
	"encoding/json"
	"time"
)

// swagger:model InterviewArchive
// 已完成面试的落库快照，仪表盘在进程重启后依赖它
type InterviewArchive struct {
	BaseModel

	CandidateID string          `gorm:"index;type:varchar(36)" json:"candidateId"`
	Score       float64         `json:"score"`
	Level       string          `gorm:"size:20" json:"level"`
	AlteredPath bool            `gorm:"default:false" json:"alteredPath"`
	Summary     json.RawMessage `gorm:"type:json" json:"summary"`
	Questions   json.RawMessage `gorm:"type:json" json:"questions"`
	Answers     json.RawMessage `gorm:"type:json" json:"answers"`
	CompletedAt time.Time       `json:"completedAt"`
}

func (InterviewArchive) TableName() string {
	return "interview_archives"
}
