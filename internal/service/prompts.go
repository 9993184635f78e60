package service

import (
	"encoding/json"
	"fmt"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/internal/util"
	"strings"
)

// 提示词与结构化输出解析。每个调用点有固定 schema，
// 校验失败按硬错误传播，不在本层重试。

type qaPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

type profileBrief struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
	Years  int      `json:"years"`
}

func buildQuestionPrompt(profile *model.Candidate, difficulty model.Difficulty, seconds int, previousQA []qaPair) (string, string) {
	system := fmt.Sprintf(`You are an interviewer for a Full Stack (React/Node) role. Ask one %s difficulty question.
- Focus on React, Node.js, TypeScript, HTTP, performance, testing, or system design at appropriate depth.
- Include a short rubric and key points. Return strict JSON.`, difficulty)

	brief := profileBrief{}
	if profile != nil {
		brief.Name = profile.Name
		brief.Skills = profile.SkillList()
		brief.Years = profile.Years
	}
	if brief.Skills == nil {
		brief.Skills = []string{}
	}
	if previousQA == nil {
		previousQA = []qaPair{}
	}

	userPayload := map[string]interface{}{
		"profile":    brief,
		"previousQA": previousQA,
		"format": map[string]interface{}{
			"id":         "uuid",
			"difficulty": difficulty,
			"text":       "string",
			"seconds":    seconds,
			"rubric":     "string",
			"keyPoints":  []string{"array of strings"},
		},
	}
	user, _ := json.Marshal(userPayload)
	return system, string(user)
}

func buildScorePrompt(q model.Question, answerText string) (string, string) {
	system := `You are evaluating an interview answer. Score from 0 to 10.
Provide 2-sentence feedback and list missing key points. Return strict JSON.`

	userPayload := map[string]interface{}{
		"question": map[string]string{"text": q.Text, "rubric": q.Rubric},
		"answer":   answerText,
		"format":   map[string]interface{}{"score": 0, "feedback": "string", "missing": []string{"array of strings"}},
	}
	user, _ := json.Marshal(userPayload)
	return system, string(user)
}

type summaryQA struct {
	Question string  `json:"question"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback,omitempty"`
}

func buildSummaryPrompt(profile *model.Candidate, qa []summaryQA) (string, string) {
	system := `You are summarizing an interview. Provide:
- overallScore (0..100), level (Beginner|Intermediate|Expert),
- strengths, improvements, and a 4-5 sentence summary with a tailored learning plan.
Return strict JSON.`

	brief := profileBrief{}
	if profile != nil {
		brief.Name = profile.Name
		brief.Skills = profile.SkillList()
		brief.Years = profile.Years
	}
	if brief.Skills == nil {
		brief.Skills = []string{}
	}

	userPayload := map[string]interface{}{
		"profile": brief,
		"qa":      qa,
		"format": map[string]interface{}{
			"overallScore": 0,
			"level":        "Beginner",
			"strengths":    []string{"array of strings"},
			"improvements": []string{"array of strings"},
			"summary":      "string",
			"plan":         []string{"array of strings"},
		},
	}
	user, _ := json.Marshal(userPayload)
	return system, string(user)
}

// extractJSON 取首个 '{' 到末个 '}' 之间的片段；找不到则原样返回
func extractJSON(text string) string {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		return text[first : last+1]
	}
	return text
}

type questionOut struct {
	ID         string   `json:"id"`
	Difficulty string   `json:"difficulty"`
	Text       string   `json:"text"`
	Seconds    int      `json:"seconds"`
	Rubric     string   `json:"rubric"`
	KeyPoints  []string `json:"keyPoints"`
}

func decodeQuestionOut(raw string) (*questionOut, error) {
	var out questionOut
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: question output is not valid JSON: %v", util.ErrModelOutputInvalid, err)
	}
	if out.Text == "" {
		return nil, fmt.Errorf("%w: question output missing text", util.ErrModelOutputInvalid)
	}
	switch model.Difficulty(out.Difficulty) {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return nil, fmt.Errorf("%w: question output has invalid difficulty %q", util.ErrModelOutputInvalid, out.Difficulty)
	}
	if out.Seconds < 0 {
		return nil, fmt.Errorf("%w: question output has negative seconds", util.ErrModelOutputInvalid)
	}
	return &out, nil
}

type scoreOut struct {
	Score    float64  `json:"score"`
	Feedback string   `json:"feedback"`
	Missing  []string `json:"missing"`
}

func decodeScoreOut(raw string) (*scoreOut, error) {
	var out scoreOut
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: score output is not valid JSON: %v", util.ErrModelOutputInvalid, err)
	}
	if out.Score < 0 || out.Score > 10 {
		return nil, fmt.Errorf("%w: score %v out of range [0,10]", util.ErrModelOutputInvalid, out.Score)
	}
	if out.Feedback == "" {
		return nil, fmt.Errorf("%w: score output missing feedback", util.ErrModelOutputInvalid)
	}
	return &out, nil
}

type summaryOut struct {
	OverallScore float64  `json:"overallScore"`
	Level        string   `json:"level"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
	Plan         []string `json:"plan"`
}

func decodeSummaryOut(raw string) (*summaryOut, error) {
	var out summaryOut
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("%w: summary output is not valid JSON: %v", util.ErrModelOutputInvalid, err)
	}
	if out.OverallScore < 0 || out.OverallScore > 100 {
		return nil, fmt.Errorf("%w: overallScore %v out of range [0,100]", util.ErrModelOutputInvalid, out.OverallScore)
	}
	switch model.SummaryLevel(out.Level) {
	case model.LevelBeginner, model.LevelIntermediate, model.LevelExpert:
	default:
		return nil, fmt.Errorf("%w: summary output has invalid level %q", util.ErrModelOutputInvalid, out.Level)
	}
	return &out, nil
}
