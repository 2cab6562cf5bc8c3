// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/alris-cli/api/schemas"
	"github.com/xkilldash9x/alris-cli/internal/conversation"
	"github.com/xkilldash9x/alris-cli/internal/formfill"
	"github.com/xkilldash9x/alris-cli/internal/intent"
)

// -- Mock Implementations for Testing --

type mockRouter struct {
	decision intent.Decision
	err      error
	panicVal any
}

func (m *mockRouter) Route(ctx context.Context, command string) (intent.Decision, error) {
	if m.panicVal != nil {
		panic(m.panicVal)
	}
	return m.decision, m.err
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractForm(ctx context.Context, command string) (*intent.FormExtraction, error) {
	args := m.Called(ctx, command)
	ext, _ := args.Get(0).(*intent.FormExtraction)
	return ext, args.Error(1)
}

func (m *mockExtractor) ExtractEvent(ctx context.Context, command string, now time.Time) (*intent.EventExtraction, error) {
	args := m.Called(ctx, command, now)
	ev, _ := args.Get(0).(*intent.EventExtraction)
	return ev, args.Error(1)
}

func (m *mockExtractor) ExtractEmail(ctx context.Context, command string) (*intent.EmailExtraction, error) {
	args := m.Called(ctx, command)
	em, _ := args.Get(0).(*intent.EmailExtraction)
	return em, args.Error(1)
}

type mockVideos struct {
	queries []string
	result  schemas.ExecutionResult
}

func (m *mockVideos) Search(ctx context.Context, query string) schemas.ExecutionResult {
	m.queries = append(m.queries, query)
	return m.result
}

type mockForms struct {
	mock.Mock
}

func (m *mockForms) FillURL(ctx context.Context, rawURL string, data map[string]any) (*formfill.FillReport, error) {
	args := m.Called(ctx, rawURL, data)
	report, _ := args.Get(0).(*formfill.FillReport)
	return report, args.Error(1)
}

type mockExecutor struct {
	msgs     []conversation.Message
	err      error
	threadID string
}

func (m *mockExecutor) Execute(ctx context.Context, command, threadID string) ([]conversation.Message, error) {
	m.threadID = threadID
	return m.msgs, m.err
}

type mockReducer struct {
	got    []conversation.Message
	result schemas.ExecutionResult
}

func (m *mockReducer) Reduce(ctx context.Context, command string, msgs []conversation.Message) schemas.ExecutionResult {
	m.got = msgs
	return m.result
}

type mockHistory struct {
	mu      sync.Mutex
	entries []schemas.HistoryEntry
	err     error
}

func (m *mockHistory) Append(ctx context.Context, entry schemas.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

// -- Test Fixture --

type fixture struct {
	router    *mockRouter
	extractor *mockExtractor
	videos    *mockVideos
	forms     *mockForms
	executor  *mockExecutor
	reducer   *mockReducer
	history   *mockHistory
	logs      *observer.ObservedLogs
	orch      *Orchestrator
}

var fixedNow = time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		router:    &mockRouter{},
		extractor: new(mockExtractor),
		videos:    &mockVideos{},
		forms:     new(mockForms),
		executor:  &mockExecutor{},
		reducer:   &mockReducer{},
		history:   &mockHistory{},
		logs:      logs,
	}
	orch, err := New(Deps{
		Router:    f.router,
		Extractor: f.extractor,
		Videos:    f.videos,
		Forms:     f.forms,
		Executor:  f.executor,
		Reducer:   f.reducer,
		History:   f.history,
		Location:  time.UTC,
	}, zap.New(core))
	require.NoError(t, err)
	orch.now = func() time.Time { return fixedNow }
	f.orch = orch

	n := 0
	orig := uuidNewString
	uuidNewString = func() string {
		n++
		return fmt.Sprintf("uuid-%d", n)
	}
	t.Cleanup(func() { uuidNewString = orig })
	return f
}

func TestNew_RejectsNilDependencies(t *testing.T) {
	_, err := New(Deps{}, zap.NewNop())
	assert.Error(t, err)
}

func TestProcessCommand_EmptyCommand(t *testing.T) {
	f := newFixture(t)

	resp := f.orch.ProcessCommand(context.Background(), "   ", "t1")
	assert.Equal(t, schemas.IntentError, resp.Intent)
	assert.Equal(t, "t1", resp.ThreadID)
	assert.Equal(t, schemas.StatusError, resp.Result.Status)
	assert.Equal(t, ErrEmptyCommand.Error(), resp.Error)
}

func TestProcessCommand_AssignsThreadID(t *testing.T) {
	f := newFixture(t)
	f.router.decision = intent.Decision{Intent: schemas.IntentVideoDirect, URL: "https://youtu.be/dQw4w9WgXcQ"}

	resp := f.orch.ProcessCommand(context.Background(), "https://youtu.be/dQw4w9WgXcQ watch this", "")
	assert.Equal(t, "uuid-1", resp.ThreadID)
}

func TestProcessCommand_RouteErrors(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		kind schemas.ErrorKind
	}{
		{"Unparseable", fmt.Errorf("classify: %w", schemas.ErrClassificationUnparseable), schemas.ErrKindClassificationUnparseable},
		{"Transport", fmt.Errorf("%w: 503", schemas.ErrCollaboratorUnavailable), schemas.ErrKindCollaboratorUnavailable},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.router.err = tc.err

			resp := f.orch.ProcessCommand(context.Background(), "do something", "t1")
			assert.Equal(t, schemas.IntentError, resp.Intent)
			assert.Equal(t, schemas.StatusError, resp.Result.Status)
			assert.Equal(t, tc.kind, resp.Result.ErrorKind)
			assert.Equal(t, tc.err.Error(), resp.Error)
		})
	}
}

func TestProcessCommand_DirectVideo(t *testing.T) {
	f := newFixture(t)
	url := "https://youtu.be/dQw4w9WgXcQ"
	f.router.decision = intent.Decision{Intent: schemas.IntentVideoDirect, URL: url}

	resp := f.orch.ProcessCommand(context.Background(), url+" watch this", "t1")
	assert.Equal(t, schemas.IntentVideoDirect, resp.Intent)
	assert.Equal(t, schemas.StatusSuccess, resp.Result.Status)
	assert.Contains(t, resp.Result.Message, url)
	assert.Equal(t, []string{url}, resp.VideoURLs)
	require.NotNil(t, resp.Result.Action)
	assert.Equal(t, schemas.ActionBrowser, resp.Result.Action.ActionType)
	assert.Empty(t, f.videos.queries, "a direct link never searches")
}

func TestProcessCommand_VideoSearch(t *testing.T) {
	f := newFixture(t)
	f.router.decision = intent.Decision{Intent: schemas.IntentVideoSearch, Query: "lofi beats"}
	urls := []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"}
	f.videos.result = schemas.ExecutionResult{Status: schemas.StatusSuccess, Message: "found", VideoURLs: urls}

	resp := f.orch.ProcessCommand(context.Background(), "play lofi beats on youtube", "t1")
	assert.Equal(t, []string{"lofi beats"}, f.videos.queries)
	assert.Equal(t, urls, resp.VideoURLs)
	assert.Equal(t, urls, resp.Result.VideoURLs)
}

func TestProcessCommand_FormFill(t *testing.T) {
	command := "sign me up at https://example.com/join as Ada, ada@example.com"
	ext := &intent.FormExtraction{
		URL:      "https://example.com/join",
		FormData: map[string]any{"name": "Ada", "email": "ada@example.com"},
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentFormFill}
		f.extractor.On("ExtractForm", mock.Anything, command).Return(ext, nil)
		report := &formfill.FillReport{
			Fields: []formfill.FieldOutcome{
				{Key: "email", Matched: true, Confidence: formfill.ConfidenceExact},
				{Key: "name", Matched: true, Confidence: formfill.ConfidenceExact},
			},
			Submitted:  true,
			Screenshot: []byte("png"),
		}
		f.forms.On("FillURL", mock.Anything, ext.URL, ext.FormData).Return(report, nil)

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.IntentFormFill, resp.Intent)
		assert.Equal(t, schemas.StatusSuccess, resp.Result.Status)
		assert.Equal(t, "Filled 2 field(s): email, name. The form was submitted.", resp.Result.Message)
		assert.Equal(t, "cG5n", resp.Result.Screenshot)
		require.Len(t, resp.Result.ToolOutputs, 1)
		assert.Equal(t, "fill_form", resp.Result.ToolOutputs[0].ToolName)
		f.forms.AssertExpectations(t)
	})

	t.Run("missing email asks for it", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentFormFill}
		partial := &intent.FormExtraction{URL: "https://example.com/join", FormData: map[string]any{"name": "Ada"}}
		f.extractor.On("ExtractForm", mock.Anything, command).Return(partial, nil)

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.StatusClarificationNeeded, resp.Result.Status)
		assert.Contains(t, resp.Result.Message, "email")
		assert.Equal(t, "https://example.com/join", resp.Result.Fields["url"])
		f.forms.AssertNotCalled(t, "FillURL", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing url asks for it without a browser", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentFormFill}
		noURL := &intent.FormExtraction{FormData: map[string]any{"name": "Ada", "email": "ada@example.com"}}
		f.extractor.On("ExtractForm", mock.Anything, "sign me up as Ada, ada@example.com").Return(noURL, nil)

		resp := f.orch.ProcessCommand(context.Background(), "sign me up as Ada, ada@example.com", "t1")
		assert.Equal(t, schemas.IntentFormFill, resp.Intent)
		assert.Equal(t, schemas.StatusClarificationNeeded, resp.Result.Status)
		assert.NotEmpty(t, resp.Result.Message)
		assert.Contains(t, resp.Result.Message, "URL")
		f.forms.AssertNotCalled(t, "FillURL", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unrelated name field does not count", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentFormFill}
		company := &intent.FormExtraction{URL: "https://example.com/join", FormData: map[string]any{"company_name": "Acme", "email": "ada@example.com"}}
		f.extractor.On("ExtractForm", mock.Anything, command).Return(company, nil)

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.StatusClarificationNeeded, resp.Result.Status)
		assert.Contains(t, resp.Result.Message, "need your name")
		f.forms.AssertNotCalled(t, "FillURL", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unparseable extraction asks again", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentFormFill}
		f.extractor.On("ExtractForm", mock.Anything, command).Return(nil, fmt.Errorf("%w: form extraction", intent.ErrExtractionUnparseable))

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.StatusClarificationNeeded, resp.Result.Status)
	})

	t.Run("no fields matched", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentFormFill}
		f.extractor.On("ExtractForm", mock.Anything, command).Return(ext, nil)
		report := &formfill.FillReport{Fields: []formfill.FieldOutcome{{Key: "email"}, {Key: "name"}}}
		f.forms.On("FillURL", mock.Anything, ext.URL, ext.FormData).Return(report, schemas.ErrNoFieldsMatched)

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.StatusError, resp.Result.Status)
		assert.Equal(t, schemas.ErrKindNoFieldsMatched, resp.Result.ErrorKind)
		assert.Contains(t, resp.Result.Message, "Could not find a field for: email, name.")
	})

	t.Run("browser failure", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentFormFill}
		f.extractor.On("ExtractForm", mock.Anything, command).Return(ext, nil)
		f.forms.On("FillURL", mock.Anything, ext.URL, ext.FormData).
			Return(nil, fmt.Errorf("%w: chrome crashed", schemas.ErrCollaboratorUnavailable))

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.StatusError, resp.Result.Status)
		assert.Equal(t, schemas.ErrKindCollaboratorUnavailable, resp.Result.ErrorKind)
	})
}

func TestProcessCommand_Calendar(t *testing.T) {
	command := "schedule a meeting with Bob tomorrow at 10am"

	t.Run("prepares the event", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentCalendar}
		start := time.Date(2025, 5, 31, 10, 0, 0, 0, time.UTC)
		f.extractor.On("ExtractEvent", mock.Anything, command, fixedNow).Return(&intent.EventExtraction{
			Title: "Meeting with Bob",
			Start: start,
			End:   start.Add(time.Hour),
		}, nil)

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.StatusSuccess, resp.Result.Status)
		assert.Equal(t, "I've prepared the calendar event 'Meeting with Bob' for Saturday, May 31 at 10:00 AM.", resp.Result.Message)
		require.NotNil(t, resp.Result.Action)
		assert.Equal(t, schemas.ActionCalendar, resp.Result.Action.ActionType)
		assert.Equal(t, "2025-05-31T10:00:00Z", resp.Result.Action.Parameters["start_time"])
	})

	t.Run("missing time needs clarification", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentCalendar}
		f.extractor.On("ExtractEvent", mock.Anything, command, fixedNow).Return(&intent.EventExtraction{
			Title:              "Meeting with Bob",
			NeedsClarification: "No time specified. Please provide a date and time for the event.",
		}, nil)

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.StatusClarificationNeeded, resp.Result.Status)
		assert.Equal(t, "Meeting with Bob", resp.Result.Fields["title"])
	})
}

func TestProcessCommand_Email(t *testing.T) {
	command := "email bob@example.com about the launch"

	t.Run("prepares the email", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentEmail}
		f.extractor.On("ExtractEmail", mock.Anything, command).Return(&intent.EmailExtraction{
			To:      []string{"bob@example.com"},
			Subject: "Launch",
			Body:    "We launch Monday.",
		}, nil)

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.StatusSuccess, resp.Result.Status)
		assert.Equal(t, "I've prepared an email to bob@example.com with the subject 'Launch'.", resp.Result.Message)
		require.NotNil(t, resp.Result.Action)
		assert.Equal(t, schemas.ActionEmail, resp.Result.Action.ActionType)
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentEmail}
		f.extractor.On("ExtractEmail", mock.Anything, command).
			Return(nil, fmt.Errorf("%w: email extraction: timeout", schemas.ErrCollaboratorUnavailable))

		resp := f.orch.ProcessCommand(context.Background(), command, "t1")
		assert.Equal(t, schemas.IntentEmail, resp.Intent)
		assert.Equal(t, schemas.StatusError, resp.Result.Status)
		assert.Equal(t, schemas.ErrKindCollaboratorUnavailable, resp.Result.ErrorKind)
	})
}

func TestProcessCommand_ExecutionLoop(t *testing.T) {
	for _, in := range []schemas.Intent{schemas.IntentBrowser, schemas.IntentGeneral} {
		t.Run(string(in), func(t *testing.T) {
			f := newFixture(t)
			f.router.decision = intent.Decision{Intent: in}
			f.executor.msgs = []conversation.Message{
				{Role: conversation.RoleHuman, Content: conversation.Text("open example.com")},
				{Role: conversation.RoleAssistant, Content: conversation.Text("Done.")},
			}
			f.reducer.result = schemas.ExecutionResult{Status: schemas.StatusSuccess, Message: "Done."}

			resp := f.orch.ProcessCommand(context.Background(), "open example.com", "thread-9")
			assert.Equal(t, in, resp.Intent)
			assert.Equal(t, "Done.", resp.Result.Message)
			assert.Equal(t, "thread-9", f.executor.threadID)
			assert.Equal(t, f.executor.msgs, f.reducer.got)
			assert.Nil(t, resp.VideoURLs)
		})
	}

	t.Run("model unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.router.decision = intent.Decision{Intent: schemas.IntentGeneral}
		f.executor.err = fmt.Errorf("%w: 503", schemas.ErrCollaboratorUnavailable)

		resp := f.orch.ProcessCommand(context.Background(), "hello", "t1")
		assert.Equal(t, schemas.StatusError, resp.Result.Status)
		assert.Equal(t, schemas.ErrKindCollaboratorUnavailable, resp.Result.ErrorKind)
		assert.Nil(t, f.reducer.got)
	})
}

func TestProcessCommand_RecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.router.panicVal = "router exploded"

	resp := f.orch.ProcessCommand(context.Background(), "hello", "t1")
	assert.Equal(t, schemas.IntentError, resp.Intent)
	assert.Equal(t, "t1", resp.ThreadID)
	assert.Contains(t, resp.Error, "router exploded")
	assert.Equal(t, 1, f.logs.FilterMessage("Panic while processing command.").Len())
	require.Len(t, f.history.entries, 1, "a recovered panic is still recorded")
	assert.Equal(t, schemas.IntentError, f.history.entries[0].Intent)
}

func TestProcessCommand_RecordsHistory(t *testing.T) {
	f := newFixture(t)
	f.router.decision = intent.Decision{Intent: schemas.IntentVideoSearch, Query: "cats"}
	f.videos.result = schemas.ExecutionResult{
		Status:    schemas.StatusSuccess,
		Message:   "Here are cats.",
		VideoURLs: []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"},
	}

	f.orch.ProcessCommand(context.Background(), "search youtube for cats", "t1")
	require.Len(t, f.history.entries, 1)
	entry := f.history.entries[0]
	assert.Equal(t, "t1", entry.ThreadID)
	assert.Equal(t, "search youtube for cats", entry.Command)
	assert.Equal(t, schemas.IntentVideoSearch, entry.Intent)
	assert.Equal(t, schemas.StatusSuccess, entry.Status)
	assert.Equal(t, "Here are cats.", entry.Message)
	assert.Equal(t, fixedNow, entry.CreatedAt)
	assert.NotEmpty(t, entry.ID)

	t.Run("store failures are only logged", func(t *testing.T) {
		f := newFixture(t)
		f.history.err = errors.New("disk full")
		f.router.decision = intent.Decision{Intent: schemas.IntentVideoSearch, Query: "cats"}

		resp := f.orch.ProcessCommand(context.Background(), "search youtube for cats", "t1")
		assert.NotEqual(t, schemas.IntentError, resp.Intent)
		assert.Equal(t, 1, f.logs.FilterMessage("Failed to record command history.").Len())
	})
}
