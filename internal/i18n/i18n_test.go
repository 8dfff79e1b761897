package i18n

import (
	"testing"

	"golang.org/x/text/language"
)

func TestTranslateDefaultsToChinese(t *testing.T) {
	c := NewCatalog("zh")
	if got := c.Translate("", LoginSuccess); got != "登录成功" {
		t.Fatalf("Translate = %q, want 登录成功", got)
	}
}

func TestTranslateFollowsAcceptLanguage(t *testing.T) {
	c := NewCatalog("zh")
	cases := []struct {
		header string
		want   string
	}{
		{"en-US,en;q=0.9", "login successful"},
		{"ja", "ログインに成功しました"},
		{"fr-FR", "登录成功"},
		{"not a header;;", "登录成功"},
	}
	for _, tc := range cases {
		t.Run(tc.header, func(t *testing.T) {
			if got := c.Translate(tc.header, LoginSuccess); got != tc.want {
				t.Fatalf("Translate(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}

func TestNewCatalogHonorsDefaultLanguage(t *testing.T) {
	c := NewCatalog("en")
	if got := c.Match(""); got != language.English {
		t.Fatalf("Match(\"\") = %v, want en", got)
	}

	// 未対応の既定言語は中国語にフォールバックする
	c = NewCatalog("xx-invalid")
	if got := c.Match(""); got != language.Chinese {
		t.Fatalf("Match(\"\") = %v, want zh", got)
	}
}

func TestMessageUnknownID(t *testing.T) {
	c := NewCatalog("zh")
	if got := c.Message(language.English, "no.such.id"); got != "no.such.id" {
		t.Fatalf("Message = %q", got)
	}
}

func TestAllLanguagesCoverSameIDs(t *testing.T) {
	base := messages[language.Chinese]
	for tag, table := range messages {
		for id := range base {
			if _, ok := table[id]; !ok {
				t.Errorf("%v is missing %s", tag, id)
			}
		}
	}
}
