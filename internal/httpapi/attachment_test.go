package httpapi

import (
	"strings"
	"testing"

	"github.com/John-Robertt/subhub-go/internal/subscription"
)

func TestOutputFileName(t *testing.T) {
	cases := []struct {
		name   string
		target subscription.Target
		want   string
	}{
		{"Home", subscription.TargetClash, "Home.yaml"},
		{"Home", subscription.TargetSingBox, "Home.json"},
		{"Home", subscription.TargetBase, "Home.txt"},
		{"list.txt", subscription.TargetBase, "list.txt"},
		{"a/b\\c", subscription.TargetClash, "a_b_c.yaml"},
		{"bad\r\nname", subscription.TargetClash, "badname.yaml"},
		{"   ", subscription.TargetSingBox, "singbox.json"},
	}
	for _, tc := range cases {
		if got := outputFileName(tc.name, tc.target); got != tc.want {
			t.Fatalf("outputFileName(%q, %s)=%q, want %q", tc.name, tc.target, got, tc.want)
		}
	}
}

func TestOutputFileName_TruncatesOnRuneBoundary(t *testing.T) {
	got := outputFileName(strings.Repeat("节", 100), subscription.TargetClash)
	base := strings.TrimSuffix(got, ".yaml")
	if len(base) > 200 {
		t.Fatalf("len=%d, want <= 200", len(base))
	}
	if strings.ContainsRune(base, '�') || len(base)%3 != 0 {
		t.Fatalf("truncated inside a rune: %q", base)
	}
}

func TestContentDispositionAttachment_UTF8(t *testing.T) {
	got := contentDispositionAttachment("我的 节点.yaml")
	if !strings.Contains(got, `filename="我的 节点.yaml"`) {
		t.Fatalf("Content-Disposition=%q, want plain filename", got)
	}
	if !strings.Contains(got, "filename*=UTF-8''%E6%88%91%E7%9A%84%20%E8%8A%82%E7%82%B9.yaml") {
		t.Fatalf("Content-Disposition=%q, want encoded filename*", got)
	}
}
