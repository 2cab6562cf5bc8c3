package schemas_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/alris-cli/api/schemas"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected schemas.ErrorKind
	}{
		{"Nil", nil, schemas.ErrKindNone},
		{"Classification", schemas.ErrClassificationUnparseable, schemas.ErrKindClassificationUnparseable},
		{"WrappedNoFields", fmt.Errorf("fill: %w", schemas.ErrNoFieldsMatched), schemas.ErrKindNoFieldsMatched},
		{"DoubleWrappedCollaborator", fmt.Errorf("a: %w", fmt.Errorf("b: %w", schemas.ErrCollaboratorUnavailable)), schemas.ErrKindCollaboratorUnavailable},
		{"JoinedPicksFirstInTable", errors.Join(schemas.ErrToolInvocationFailed, schemas.ErrClassificationUnparseable), schemas.ErrKindClassificationUnparseable},
		{"Unknown", errors.New("boom"), schemas.ErrKindInternal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, schemas.KindOf(tc.err))
		})
	}
}

func TestResultBuilders(t *testing.T) {
	t.Run("ErrorResult carries the kind", func(t *testing.T) {
		res := schemas.ErrorResult("browser down", fmt.Errorf("launch: %w", schemas.ErrCollaboratorUnavailable))
		assert.Equal(t, schemas.StatusError, res.Status)
		assert.Equal(t, "browser down", res.Message)
		assert.Equal(t, schemas.ErrKindCollaboratorUnavailable, res.ErrorKind)
	})

	t.Run("ClarificationResult keeps partial fields", func(t *testing.T) {
		res := schemas.ClarificationResult("need email", map[string]any{"name": "Ada"})
		assert.Equal(t, schemas.StatusClarificationNeeded, res.Status)
		assert.Equal(t, "Ada", res.Fields["name"])
		assert.Empty(t, res.ErrorKind)
	})
}
