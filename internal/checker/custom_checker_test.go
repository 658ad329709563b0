package checker

import (
	"strings"
	"testing"
	"time"
)

func TestExactMatch(t *testing.T) {
	cc := &CustomChecker{}

	tests := []struct {
		name     string
		actual   string
		expected string
		want     bool
	}{
		{"identical", "42\n", "42\n", true},
		{"trims surrounding whitespace", "  42  \n", "42", true},
		{"different values", "41", "42", false},
		{"empty vs whitespace", "", "   ", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := cc.exactMatch(tc.actual, tc.expected)
			if result.IsCorrect != tc.want {
				t.Errorf("exactMatch(%q, %q).IsCorrect = %v, want %v", tc.actual, tc.expected, result.IsCorrect, tc.want)
			}
		})
	}
}

func TestResultFromExitCode(t *testing.T) {
	cc := &CustomChecker{}

	correct := cc.resultFromExitCode(0, []byte("nice job"), 5*time.Millisecond, 1024)
	if !correct.IsCorrect || correct.Score != 1.0 {
		t.Errorf("exit code 0 must be interpreted as correct, got %+v", correct)
	}
	if correct.Message != "nice job" {
		t.Errorf("expected stderr to surface as the message, got %q", correct.Message)
	}

	incorrect := cc.resultFromExitCode(1, []byte("mismatch at token 3"), 5*time.Millisecond, 1024)
	if incorrect.IsCorrect || incorrect.Score != 0.0 {
		t.Errorf("nonzero exit code must be interpreted as incorrect, got %+v", incorrect)
	}
	if incorrect.Message != "mismatch at token 3" {
		t.Errorf("expected stderr to surface as the message, got %q", incorrect.Message)
	}

	noStderr := cc.resultFromExitCode(1, nil, 0, 0)
	if noStderr.Message == "" {
		t.Errorf("expected a fallback message when the checker produced no stderr")
	}
}

func TestResultFromExitCode_TruncatesLongMessage(t *testing.T) {
	cc := &CustomChecker{}

	long := strings.Repeat("x", checkerMessageLimit+500)
	result := cc.resultFromExitCode(1, []byte(long), 0, 0)

	if len(result.Message) != checkerMessageLimit {
		t.Errorf("expected the message truncated to %d bytes, got %d", checkerMessageLimit, len(result.Message))
	}
}

func TestDetectCheckerLanguage(t *testing.T) {
	cc := &CustomChecker{}

	cases := map[string]string{
		"https://store/checkers/1.cpp": "cpp",
		"https://store/checkers/1.PY":  "python",
		"https://store/checkers/1.sh":  "bash",
		"https://store/checkers/1.xyz": "",
	}
	for url, want := range cases {
		if got := cc.detectCheckerLanguage(url); got != want {
			t.Errorf("detectCheckerLanguage(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestParseMetaFile(t *testing.T) {
	cc := &CustomChecker{}

	meta := "time:0.123\nmax-rss:4194304\n"
	timeMs, memoryKb := cc.parseMetaFile(meta)

	if timeMs != 123 {
		t.Errorf("expected timeMs=123, got %d", timeMs)
	}
	if memoryKb != 4096 {
		t.Errorf("expected memoryKb=4096, got %d", memoryKb)
	}
}
