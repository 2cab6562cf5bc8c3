package normalize

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Empty", "", ""},
		{"SpacesAndCase", "First Name", "firstname"},
		{"Underscores", "first_name", "firstname"},
		{"AlreadyCanonical", "firstname", "firstname"},
		{"TrailingSpace", "Email ", "email"},
		{"TabsAndNewlines", "\tE\nmail\r", "email"},
		{"HyphenKept", "e-mail", "e-mail"},
		{"PunctuationKept", "Phone #", "phone#"},
		{"OnlyStripped", " _ _ ", ""},
		{"UnicodeSpace", "full name", "fullname"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Key(tc.input))
		})
	}
}

func FuzzKeyIdempotent(f *testing.F) {
	f.Add([]byte("First Name"))
	f.Add([]byte("e-mail"))
	f.Add([]byte(" __ \t"))
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		s, err := consumer.GetString()
		if err != nil {
			return
		}
		once := Key(s)
		if twice := Key(once); twice != once {
			t.Fatalf("Key is not idempotent: %q -> %q -> %q", s, once, twice)
		}
	})
}
