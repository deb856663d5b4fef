package core_test

import (
	"testing"

	"taskboard-service/core"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"My Cool Project", "my-cool-project"},
		{"taskboard", "taskboard"},
		{"API Gateway v2", "api-gateway-v2"},
		{"  padded  name  ", "padded-name"},
		{"weird!!punctuation??here", "weird-punctuation-here"},
		{"---dashes---", "dashes"},
		{"MixedCASE", "mixedcase"},
		{"123 numbers first", "123-numbers-first"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := core.Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
