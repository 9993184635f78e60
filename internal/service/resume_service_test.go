package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `Jane Smith
Senior Full Stack Engineer
jane.smith@Example.COM | (415) 555-0123

Experience with React, TypeScript and Node. Built GraphQL APIs,
deployed with Docker on AWS.`

func TestGuessNameFromHeader(t *testing.T) {
	assert.Equal(t, "Jane Smith", guessNameFromHeader(sampleResume))
	assert.Empty(t, guessNameFromHeader("RESUME 2024\njane smith"))
	assert.Empty(t, guessNameFromHeader(""))
}

func TestExtractEmailNormalizes(t *testing.T) {
	assert.Equal(t, "jane.smith@example.com", extractEmail(sampleResume))
	assert.Empty(t, extractEmail("no contact info here"))
}

func TestExtractPhoneNormalizes(t *testing.T) {
	assert.Equal(t, "+14155550123", extractPhone(sampleResume))
	assert.Equal(t, "+14155550123", extractPhone("call 1-415-555-0123 now"))
	assert.Empty(t, extractPhone("no numbers"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+14155550123", normalizePhone("415 555 0123"))
	assert.Equal(t, "+14155550123", normalizePhone("1 (415) 555-0123"))
	assert.Equal(t, "0123456789", normalizePhone("0123456789"))
	assert.Equal(t, "+861234567890", normalizePhone("861234567890"))
	assert.Empty(t, normalizePhone("---"))
}

func TestExtractSkills(t *testing.T) {
	skills := extractSkills(sampleResume, defaultSkills)
	assert.Contains(t, skills, "react")
	assert.Contains(t, skills, "typescript")
	assert.Contains(t, skills, "node")
	assert.Contains(t, skills, "graphql")
	assert.Contains(t, skills, "docker")
	assert.Contains(t, skills, "aws")
	assert.NotContains(t, skills, "python")
}

func TestExtractSkillsMatchesWholeWordsOnly(t *testing.T) {
	skills := extractSkills("worked on javac tooling", []string{"java"})
	assert.Empty(t, skills)

	skills = extractSkills("java developer", []string{"java"})
	assert.Equal(t, []string{"java"}, skills)
}

func TestExtractSkillsBigram(t *testing.T) {
	skills := extractSkills("shipped a react native app", []string{"react native"})
	assert.Equal(t, []string{"react native"}, skills)
}

func TestParsePlainTextResume(t *testing.T) {
	svc := NewResumeService(nil, nil, nil)
	parsed, err := svc.Parse(context.Background(), "resume.txt", "text/plain", []byte(sampleResume))
	require.NoError(t, err)

	assert.Equal(t, "Jane Smith", parsed.Fields.Name)
	assert.Equal(t, "jane.smith@example.com", parsed.Fields.Email)
	assert.Equal(t, "+14155550123", parsed.Fields.Phone)
	assert.Equal(t, "resume.txt", parsed.Meta.Filename)
	assert.Equal(t, int64(len(sampleResume)), parsed.Meta.Size)
	assert.NotEmpty(t, parsed.Skills)
}

func TestParseRejectsUnsupportedType(t *testing.T) {
	svc := NewResumeService(nil, nil, nil)
	_, err := svc.Parse(context.Background(), "resume.exe", "application/octet-stream", []byte{0x4d, 0x5a})
	require.Error(t, err)
}
