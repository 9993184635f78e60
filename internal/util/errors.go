package util

import "errors"

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrCandidateNotFound   = errors.New("candidate not found")
	ErrSessionNotFound     = errors.New("interview session not found")
	ErrSessionNotRunning   = errors.New("interview session is not running")
	ErrNoActiveQuestion    = errors.New("no active question to answer")
	ErrInterviewCompleted  = errors.New("interview already completed")
	ErrProfileIncomplete   = errors.New("candidate profile is incomplete")
	ErrModelOutputInvalid  = errors.New("model output failed schema validation")
	ErrResumeUnsupported   = errors.New("unsupported resume format")
	ErrStorageNotConfigure = errors.New("storage backend is not configured")
)
