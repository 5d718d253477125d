package langmeta

import (
	"strings"
	"testing"
)

func TestCanonical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "ru", want: "ru"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		got := Canonical(tc.in)
		if got != tc.want {
			t.Fatalf("Canonical(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestName(t *testing.T) {
	t.Run("bare code", func(t *testing.T) {
		if got := Name("vi"); got != "Vietnamese" {
			t.Fatalf("Name(vi) = %q, want Vietnamese", got)
		}
		if got := Name("ru"); got != "Russian" {
			t.Fatalf("Name(ru) = %q, want Russian", got)
		}
	})

	t.Run("regional variant", func(t *testing.T) {
		got := Name("pt_br")
		if !strings.Contains(got, "Portuguese") {
			t.Fatalf("Name(pt_br) = %q, want a Portuguese variant", got)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		if got := Name("zz-ZZ"); got != "zz-ZZ" {
			t.Fatalf("Name(zz-ZZ) = %q, want passthrough", got)
		}
	})
}

func TestNative(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "vi", want: "Tiếng Việt"},
		{in: "ru", want: "русский"},
		{in: "zz", want: "zz"},
	}

	for _, tc := range cases {
		got := Native(tc.in)
		if got != tc.want {
			t.Fatalf("Native(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRegion(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt-BR", want: "BR"}, // explicit region wins
		{in: "pt", want: "PT"},    // pinned over likely-subtag BR
		{in: "vi", want: "VN"},    // inferred likely country
		{in: "eo", want: ""},      // world region, no country
		{in: "zz", want: ""},
	}

	for _, tc := range cases {
		got := Region(tc.in)
		if got != tc.want {
			t.Fatalf("Region(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFlag(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "ja", want: "🇯🇵"},
		{in: "pt-BR", want: "🇧🇷"},
		{in: "zz", want: ""},
	}

	for _, tc := range cases {
		got := Flag(tc.in)
		if got != tc.want {
			t.Fatalf("Flag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("canonical code", func(t *testing.T) {
		got := Resolve("pt_br")
		if got.Code != "pt-BR" || got.Flag != "🇧🇷" {
			t.Fatalf("unexpected result: %#v", got)
		}
		if !strings.Contains(got.Name, "Portuguese") {
			t.Fatalf("unexpected name: %q", got.Name)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("zz-ZZ")
		if got.Name != "zz-ZZ" || got.Flag != "" {
			t.Fatalf("unexpected unknown result: %#v", got)
		}
	})
}

func TestValid(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{in: "vi", want: true},
		{in: "pt_BR", want: true},
		{in: "invalid", want: false},
		{in: "", want: false},
	}

	for _, tc := range cases {
		if got := Valid(tc.in); got != tc.want {
			t.Fatalf("Valid(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
