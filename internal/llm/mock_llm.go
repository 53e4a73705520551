package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSummarizer is a mock implementation of Summarizer using testify/mock.
type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) SummarizeSection(ctx context.Context, section Section) (string, error) {
	args := m.Called(ctx, section)
	return args.String(0), args.Error(1)
}

func (m *MockSummarizer) Synthesize(ctx context.Context, synthesis Synthesis) (string, error) {
	args := m.Called(ctx, synthesis)
	return args.String(0), args.Error(1)
}
