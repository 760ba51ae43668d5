// Package mocks holds testify mocks for the domain ports.
package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/chat-dispatch/internal/domain"
)

// MockConversationRepository mocks domain.ConversationRepository.
type MockConversationRepository struct{ mock.Mock }

func (m *MockConversationRepository) Create(ctx domain.Context, c domain.Conversation) (string, error) {
	args := m.Called(ctx, c)
	return args.String(0), args.Error(1)
}

func (m *MockConversationRepository) Get(ctx domain.Context, id string) (domain.Conversation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) UpdateTitle(ctx domain.Context, id, title string) error {
	return m.Called(ctx, id, title).Error(0)
}

// MockMessageRepository mocks domain.MessageRepository.
type MockMessageRepository struct{ mock.Mock }

func (m *MockMessageRepository) Append(ctx domain.Context, msg domain.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockMessageRepository) Recent(ctx domain.Context, conversationID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}

func (m *MockMessageRepository) Count(ctx domain.Context, conversationID string) (int, error) {
	args := m.Called(ctx, conversationID)
	return args.Int(0), args.Error(1)
}

// MockFileRepository mocks domain.FileRepository.
type MockFileRepository struct{ mock.Mock }

func (m *MockFileRepository) Create(ctx domain.Context, f domain.StoredFile) (string, error) {
	args := m.Called(ctx, f)
	return args.String(0), args.Error(1)
}

func (m *MockFileRepository) Get(ctx domain.Context, id string) (domain.StoredFile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.StoredFile), args.Error(1)
}

func (m *MockFileRepository) ListByConversation(ctx domain.Context, conversationID string) ([]domain.StoredFile, error) {
	args := m.Called(ctx, conversationID)
	files, _ := args.Get(0).([]domain.StoredFile)
	return files, args.Error(1)
}

func (m *MockFileRepository) Delete(ctx domain.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockBackendCaller mocks domain.BackendCaller.
type MockBackendCaller struct{ mock.Mock }

func (m *MockBackendCaller) CallBackend(ctx domain.Context, messages []domain.ChatMessage, model string, timeout time.Duration) (string, error) {
	args := m.Called(ctx, messages, model, timeout)
	return args.String(0), args.Error(1)
}

// MockTextExtractor mocks domain.TextExtractor.
type MockTextExtractor struct{ mock.Mock }

func (m *MockTextExtractor) ExtractBytes(ctx domain.Context, fileName string, data []byte) (string, error) {
	args := m.Called(ctx, fileName, data)
	return args.String(0), args.Error(1)
}
