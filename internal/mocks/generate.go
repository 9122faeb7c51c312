// Package mocks provides mock implementations for testing the viewer subsystem.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockSessionRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(session, nil)
package mocks

// Generate mock for SessionRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=session_repository_mock.go github.com/docvault/viewer-api/internal/core SessionRepository

// Generate mock for AccessLogRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=access_log_repository_mock.go github.com/docvault/viewer-api/internal/core AccessLogRepository

// Generate mock for DocumentRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=document_repository_mock.go github.com/docvault/viewer-api/internal/core DocumentRepository

// Generate mock for PurchaseRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=purchase_repository_mock.go github.com/docvault/viewer-api/internal/core PurchaseRepository

// Generate mock for ObjectStore interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=object_store_mock.go github.com/docvault/viewer-api/internal/core ObjectStore

// Generate mock for NonceStore interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=nonce_store_mock.go github.com/docvault/viewer-api/internal/core NonceStore
