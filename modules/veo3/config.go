package veo3

import (
	"time"

	"veo-studio-server/modules/common/config"
)

// OrchestratorConfig - 폴링 / 진행 메시지 / 썸네일 타이밍
type OrchestratorConfig struct {
	PollInterval     time.Duration
	ProgressInterval time.Duration
	ThumbnailOffset  time.Duration
	Messages         []string
}

// DefaultOrchestratorConfig - 10초 폴링, 8초 메시지 순환, 8초 지점 썸네일
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		PollInterval:     10 * time.Second,
		ProgressInterval: 8 * time.Second,
		ThumbnailOffset:  8 * time.Second,
		Messages:         LoadingMessages,
	}
}

// ConfigFrom - 전역 설정에서 변환 (0 값은 기본값 유지)
func ConfigFrom(cfg *config.Config) OrchestratorConfig {
	c := DefaultOrchestratorConfig()
	if cfg == nil {
		return c
	}
	if cfg.PollInterval > 0 {
		c.PollInterval = cfg.PollInterval
	}
	if cfg.ProgressInterval > 0 {
		c.ProgressInterval = cfg.ProgressInterval
	}
	if cfg.ThumbnailOffset > 0 {
		c.ThumbnailOffset = cfg.ThumbnailOffset
	}
	return c
}
