package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseProposalID checks that parsing never panics and that accepted
// input round-trips through String.
func FuzzParseProposalID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseProposalID(input)
		if err != nil {
			return
		}
		if id.IsNil() {
			t.Error("nil proposal ID accepted")
		}
		again, err := ParseProposalID(id.String())
		if err != nil || again != id {
			t.Errorf("round-trip failed for %q", input)
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input accepted")
		}
	})
}
