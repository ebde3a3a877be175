// Package mocks provides gomock implementations of the core repository ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	jobs := mocks.NewMockJobRepository(ctrl)
//	jobs.EXPECT().GetByID(gomock.Any(), id).Return(rec, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/VihangaMunasinghe/ares-sub001/internal/core JobRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=mission_repository_mock.go github.com/VihangaMunasinghe/ares-sub001/internal/core MissionRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/VihangaMunasinghe/ares-sub001/internal/core CacheRepository
