package intent

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockCompleter is a testify mock of schemas.Completer.
type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// replying returns a completer that answers every prompt with reply.
func replying(reply string) *mockCompleter {
	m := new(mockCompleter)
	m.On("Complete", mock.Anything, mock.Anything).Return(reply, nil)
	return m
}

// lastPrompt returns the prompt of the most recent call.
func (m *mockCompleter) lastPrompt() string {
	calls := m.Calls
	if len(calls) == 0 {
		return ""
	}
	return calls[len(calls)-1].Arguments.String(1)
}
