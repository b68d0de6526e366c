package cli

import (
	"io"
	"os"
	"strings"
	"testing"
)

// captureStderr runs fn with os.Stderr redirected to a pipe and returns
// everything written to it.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe error: %v", err)
	}
	old := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = old }()

	fn()
	w.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	return string(data)
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
		want []string
	}{
		{
			name: "success",
			fn:   func() { printSuccess("installed %d packages", 3) },
			want: []string{iconSuccess, "installed 3 packages"},
		},
		{
			name: "error",
			fn:   func() { printError("failed to verify %q", "base") },
			want: []string{iconError, `failed to verify "base"`},
		},
		{
			name: "warning",
			fn:   func() { printWarning("skipped %q", "matchers") },
			want: []string{iconWarning, `skipped "matchers"`},
		},
		{
			name: "info",
			fn:   func() { printInfo("verified %q", "base") },
			want: []string{iconInfo, `verified "base"`},
		},
		{
			name: "detail is indented",
			fn:   func() { printDetail("url: %s", "https://example.com") },
			want: []string{"  ", "url: https://example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureStderr(t, tt.fn)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output %q missing %q", out, want)
				}
			}
		})
	}
}
