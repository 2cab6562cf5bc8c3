// Package conversation models the message sequence of the tool loop and
// reduces it to a single result.
package conversation

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

// jsonAPI sorts map keys so rendered payloads are stable.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Content is one of Text, Structured or *Pending.
type Content interface {
	isContent()
}

// Text is plain message content.
type Text string

// Structured is a decoded JSON object payload.
type Structured map[string]any

func (Text) isContent()       {}
func (Structured) isContent() {}
func (*Pending) isContent()   {}

// Message is one turn of the tool loop.
type Message struct {
	Role       Role
	Content    Content
	Name       string // Originating tool, for tool messages.
	ToolCallID string
}

// Pending is content that is still being computed. Await blocks until it
// resolves; the result is memoized, so every caller sees the same value.
type Pending struct {
	done  chan struct{}
	once  sync.Once
	value Content
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(c Content, err error) {
	p.once.Do(func() {
		p.value, p.err = c, err
		close(p.done)
	})
}

// Go starts fn in a goroutine and returns its pending result. A panic in fn
// resolves the content with an error.
func Go(fn func() (Content, error)) *Pending {
	p := newPending()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.resolve(nil, fmt.Errorf("pending content panicked: %v", r))
			}
		}()
		p.resolve(fn())
	}()
	return p
}

// Resolved returns content that is already available.
func Resolved(c Content) *Pending {
	p := newPending()
	p.resolve(c, nil)
	return p
}

// Failed returns content whose computation already failed.
func Failed(err error) *Pending {
	p := newPending()
	p.resolve(nil, err)
	return p
}

// Await blocks until the content resolves. It is not cancelable; cancel the
// underlying work instead. Nested pending values are awaited in turn.
func (p *Pending) Await() (Content, error) {
	<-p.done
	if p.err != nil {
		return nil, p.err
	}
	if inner, ok := p.value.(*Pending); ok {
		return inner.Await()
	}
	return p.value, nil
}

// Done reports whether the content has resolved, without blocking.
func (p *Pending) Done() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// FromValue converts an arbitrary tool return value to content. Strings stay
// text; everything else is reduced to its JSON form, and JSON objects become
// Structured.
func FromValue(v any) Content {
	switch val := v.(type) {
	case nil:
		return Text("")
	case Content:
		return val
	case string:
		return Text(val)
	case map[string]any:
		return roundTrip(val)
	case error:
		return Text(val.Error())
	default:
		return roundTrip(val)
	}
}

func roundTrip(v any) Content {
	raw, err := jsonAPI.Marshal(v)
	if err != nil {
		return Text(fmt.Sprint(v))
	}
	var obj map[string]any
	if err := jsonAPI.Unmarshal(raw, &obj); err == nil && obj != nil {
		return Structured(obj)
	}
	return Text(raw)
}

// String renders content for prompts and final messages. Structured content
// renders as compact JSON. Pending content renders as a placeholder and is
// never awaited here.
func String(c Content) string {
	switch val := c.(type) {
	case nil:
		return ""
	case Text:
		return string(val)
	case Structured:
		raw, err := jsonAPI.Marshal(map[string]any(val))
		if err != nil {
			return fmt.Sprint(map[string]any(val))
		}
		return string(raw)
	case *Pending:
		return "<pending>"
	default:
		return fmt.Sprint(val)
	}
}
