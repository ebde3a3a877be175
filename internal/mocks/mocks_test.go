package mocks

import (
	"github.com/VihangaMunasinghe/ares-sub001/internal/core"
	"github.com/VihangaMunasinghe/ares-sub001/internal/data"
)

// Regenerate with go generate when any of these stop compiling.
var (
	_ core.JobRepository     = (*MockJobRepository)(nil)
	_ core.MissionRepository = (*MockMissionRepository)(nil)
	_ core.CacheRepository   = (*MockCacheRepository)(nil)

	_ core.JobRepository     = (*data.JobRepo)(nil)
	_ core.MissionRepository = (*data.MissionRepo)(nil)
	_ core.CacheRepository   = (*data.RedisCacheRepo)(nil)
)
