package service

import (
	"errors"
	"interview_pilot_backend/internal/config"
	"interview_pilot_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinioProviderRequiresEndpoint(t *testing.T) {
	_, err := NewMinioStorageProvider(&config.StorageConfig{})
	assert.True(t, errors.Is(err, util.ErrStorageNotConfigure))
}

func TestStorageServiceFallsBackToLocal(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "minio", LocalPath: "uploads"}}
	s := NewStorageService(cfg)

	_, ok := s.Provider.(*LocalStorageProvider)
	assert.True(t, ok)
}
