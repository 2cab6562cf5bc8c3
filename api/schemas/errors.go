package schemas

import "errors"

// The error taxonomy shared by every layer. Packages wrap these sentinels so
// callers can branch with errors.Is instead of matching log text.
var (
	// ErrClassificationUnparseable: the classifier's response could not be
	// mapped to a known Intent. Fatal for the request, never retried.
	ErrClassificationUnparseable = errors.New("classification response could not be mapped to a known intent")
	// ErrNoFieldsMatched: not a single user field matched a form input.
	ErrNoFieldsMatched = errors.New("no user fields matched any form inputs")
	// ErrFieldApplyFailed: a matched field could not be set. Local and non-fatal.
	ErrFieldApplyFailed = errors.New("failed to apply field value")
	// ErrCandidateInvalid: a raw video candidate was rejected.
	ErrCandidateInvalid = errors.New("invalid video candidate")
	// ErrToolInvocationFailed: a tool call inside the execution loop failed.
	ErrToolInvocationFailed = errors.New("tool invocation failed")
	// ErrCollaboratorUnavailable: the browser driver or LLM endpoint is down.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// ErrorKind is the wire name of an error in the taxonomy.
type ErrorKind string

const (
	ErrKindNone                      ErrorKind = ""
	ErrKindClassificationUnparseable ErrorKind = "classification_unparseable"
	ErrKindNoFieldsMatched           ErrorKind = "no_fields_matched"
	ErrKindFieldApplyFailed          ErrorKind = "field_apply_failed"
	ErrKindCandidateInvalid          ErrorKind = "candidate_invalid"
	ErrKindToolInvocationFailed      ErrorKind = "tool_invocation_failed"
	ErrKindCollaboratorUnavailable   ErrorKind = "collaborator_unavailable"
	ErrKindInternal                  ErrorKind = "internal"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrClassificationUnparseable, ErrKindClassificationUnparseable},
	{ErrNoFieldsMatched, ErrKindNoFieldsMatched},
	{ErrFieldApplyFailed, ErrKindFieldApplyFailed},
	{ErrCandidateInvalid, ErrKindCandidateInvalid},
	{ErrToolInvocationFailed, ErrKindToolInvocationFailed},
	{ErrCollaboratorUnavailable, ErrKindCollaboratorUnavailable},
}

// KindOf maps an error onto the taxonomy. Errors outside it are ErrKindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrKindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return ErrKindInternal
}
