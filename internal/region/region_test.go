package region

import "testing"

func TestAddFlag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"US-Node-1", "🇺🇸US-Node-1"},
		{"Japan", "🇯🇵Japan"},
		{"东京 日本 01", "🇯🇵东京 日本 01"},
		{"香港 IPLC", "🇭🇰香港 IPLC"},
		{"hk-02", "🇭🇰hk-02"},
		{"Singapore", "🇸🇬Singapore"},
		{"Taiwan Hinet", "🇹🇼Taiwan Hinet"},
		{"London uk", "🇬🇧London uk"},
		{"Seoul KR", "🇰🇷Seoul KR"},
		{"Frankfurt de", "🇩🇪Frankfurt de"},
		{"Mumbai India", "🇮🇳Mumbai India"},
		{"Paris FR", "🇫🇷Paris FR"},
		{"Sydney AU", "🇦🇺Sydney AU"},
		{"Toronto Canada", "🇨🇦Toronto Canada"},
		{"Moscow RU", "🇷🇺Moscow RU"},
		{"Milan IT", "🇮🇹Milan IT"},
		{"relay-0001", "relay-0001"},
	}
	for _, tt := range tests {
		if got := AddFlag(tt.in); got != tt.want {
			t.Fatalf("AddFlag(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddFlag_Idempotent(t *testing.T) {
	for _, in := range []string{"🇺🇸US-Node-1", "🇯🇵 Tokyo", "Relay 🇸🇬 SG"} {
		if got := AddFlag(in); got != in {
			t.Fatalf("AddFlag(%q)=%q, want unchanged", in, got)
		}
		if got := AddFlag(AddFlag("US " + in)); got != AddFlag("US "+in) {
			t.Fatalf("AddFlag not idempotent for %q", in)
		}
	}
}

func TestAddFlag_PriorityOrder(t *testing.T) {
	// Matches both the Singapore and the China entry; China comes first.
	if got, want := AddFlag("SG-CN relay"), "🇨🇳SG-CN relay"; got != want {
		t.Fatalf("AddFlag=%q, want %q", got, want)
	}
	// Matches both the US and the Japan entry; US comes first.
	if got, want := AddFlag("Japan to USA"), "🇺🇸Japan to USA"; got != want {
		t.Fatalf("AddFlag=%q, want %q", got, want)
	}
}

func TestAddFlag_SubstringSemantics(t *testing.T) {
	// Patterns are unanchored: "Russia" contains "us", which the US entry
	// matches before the Russia entry is consulted.
	if got, want := AddFlag("Russia"), "🇺🇸Russia"; got != want {
		t.Fatalf("AddFlag=%q, want %q", got, want)
	}
}

func TestFlags_Order(t *testing.T) {
	want := []string{"🇺🇸", "🇯🇵", "🇭🇰", "🇨🇳", "🇸🇬", "🇹🇼", "🇬🇧", "🇰🇷", "🇩🇪", "🇮🇳", "🇫🇷", "🇦🇺", "🇨🇦", "🇷🇺", "🇮🇹"}
	got := Flags()
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Flags()[%d]=%q, want %q", i, got[i], want[i])
		}
	}
}

func FuzzAddFlag(f *testing.F) {
	for _, s := range []string{"", "US", "🇺🇸x", "日本", "\xff"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, label string) {
		once := AddFlag(label)
		if twice := AddFlag(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", label, once, twice)
		}
	})
}
