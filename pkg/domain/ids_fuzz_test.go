package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseSessionID checks parsing never panics and accepted ids round-trip.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("session:abc")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err == nil {
			roundTrip, err2 := ParseSessionID(id.String())
			if err2 != nil || roundTrip != id {
				t.Errorf("accepted id failed round-trip: %v", err2)
			}
			if id.IsNil() {
				t.Error("nil id accepted")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}

		_, errUser := ParseUserID(input)
		_, errToken := ParseTokenID(input)
		if (err == nil) != (errUser == nil) || (err == nil) != (errToken == nil) {
			t.Error("inconsistent parsing across id types")
		}
	})
}
