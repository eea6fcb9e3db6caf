package langmeta

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt_br", want: "pt-BR"},
		{in: " EN-us ", want: "en-US"},
		{in: "zh-hans", want: "zh-Hans"},
		{in: "ru", want: "ru"},
		{in: "sr@latin", want: "sr@latin"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		got := canonicalize(tc.in)
		if got != tc.want {
			t.Fatalf("canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToGettextAndBack(t *testing.T) {
	cases := []struct {
		code    string
		gettext string
	}{
		{code: "zh-hans", gettext: "zh_Hans"},
		{code: "pt-br", gettext: "pt_BR"},
		{code: "de", gettext: "de"},
		{code: "sr-Latn", gettext: "sr_Latn"},
	}

	for _, tc := range cases {
		if got := ToGettext(tc.code); got != tc.gettext {
			t.Fatalf("ToGettext(%q) = %q, want %q", tc.code, got, tc.gettext)
		}
		if got := ToGettext(ToCode(tc.gettext)); got != tc.gettext {
			t.Fatalf("round trip of %q gave %q", tc.gettext, got)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("known language", func(t *testing.T) {
		got := Resolve("de")
		if got.Name != "German" || got.Native != "Deutsch" || got.Flag != "🇩🇪" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("gettext locale", func(t *testing.T) {
		got := Resolve("pt_BR")
		if got.Code != "pt-BR" || got.Gettext != "pt_BR" || got.Flag != "🇧🇷" {
			t.Fatalf("unexpected result: %#v", got)
		}
		if got.Name == "" || got.Name == "pt_BR" {
			t.Fatalf("no display name: %#v", got)
		}
	})

	t.Run("script subtag", func(t *testing.T) {
		got := Resolve("zh_Hans")
		if got.Gettext != "zh_Hans" || got.Name == "zh_Hans" || got.Native == "" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("not a language")
		if got.Name != "not a language" || got.Flag != "" {
			t.Fatalf("unexpected unknown result: %#v", got)
		}
	})
}
