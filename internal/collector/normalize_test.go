package collector

import "testing"

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		href, base string
		want       string
		ok         bool
	}{
		{"//x.com/a", "https://y.com", "https://x.com/a", true},
		{"/a/b", "https://y.com/c", "https://y.com/a/b", true},
		{"  https://y.com/keep?q=1  ", "https://z.com", "https://y.com/keep?q=1", true},
		{"news/today", "https://www.tbsnews.net", "https://www.tbsnews.net/news/today", true},
		{"javascript:void(0)", "https://y.com", "javascript:void(0)", true},
		{"", "https://y.com", "", false},
		{"   ", "https://y.com", "", false},
		{"/a", "://bad base", "", false},
	}

	for _, c := range cases {
		got, ok := NormalizeURL(c.href, c.base)
		if ok != c.ok || got != c.want {
			t.Fatalf("NormalizeURL(%q, %q) = (%q, %v), want (%q, %v)", c.href, c.base, got, ok, c.want, c.ok)
		}
	}
}
