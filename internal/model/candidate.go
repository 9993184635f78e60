package model

import "encoding/json"

// swagger:model Candidate
type Candidate struct {
	UUIDBase

	Name  string `gorm:"size:100" json:"name"`
	Email string `gorm:"size:191;index" json:"email"`
	Phone string `gorm:"size:40" json:"phone"`

	// 简历元信息，上传后写入
	ResumeFilename string `gorm:"size:255" json:"resumeFilename,omitempty"`
	ResumeSize     int64  `json:"resumeSize,omitempty"`
	ResumeMime     string `gorm:"size:100" json:"resumeMime,omitempty"`
	ResumeURL      string `gorm:"size:500" json:"resumeUrl,omitempty"`

	Skills json.RawMessage `gorm:"type:json" json:"skills,omitempty"`
	Years  int             `json:"years,omitempty"`
	Notes  string          `gorm:"type:text" json:"notes,omitempty"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// SkillList 反序列化 skills 字段，非法或为空时返回 nil
func (c *Candidate) SkillList() []string {
	if len(c.Skills) == 0 {
		return nil
	}
	var skills []string
	if err := json.Unmarshal(c.Skills, &skills); err != nil {
		return nil
	}
	return skills
}

// ResumeMeta 简历解析摘要，绝不臆造缺失字段
type ResumeMeta struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Mime     string `json:"mime,omitempty"`
}

type ResumeFields struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type ParsedResume struct {
	Fields ResumeFields `json:"fields"`
	Skills []string     `json:"skills"`
	Meta   ResumeMeta   `json:"meta"`
}
