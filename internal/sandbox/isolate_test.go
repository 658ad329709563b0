package sandbox

import (
	"testing"

	"judge-execution-service/internal/models"
)

func TestParseMetaFile(t *testing.T) {
	tests := []struct {
		name string
		meta string
		want isolateMeta
	}{
		{
			name: "normal exit",
			meta: "time:0.045\ntime-wall:0.050\nmax-rss:3145728\nexitcode:0\n",
			want: isolateMeta{timeMs: 45, memoryKb: 3072, exitCode: 0},
		},
		{
			name: "killed on wall time",
			meta: "time:1.000\nmax-rss:4194304\nstatus:TO\nkilled:1\nmessage:Time limit exceeded\n",
			want: isolateMeta{timeMs: 1000, memoryKb: 4096, status: "TO", killed: true, message: "Time limit exceeded"},
		},
		{
			name: "signaled, oom",
			meta: "time:0.300\nmax-rss:268435456\nstatus:SG\nexitsig:9\nkilled:1\n",
			want: isolateMeta{timeMs: 300, memoryKb: 262144, status: "SG", exitSig: 9, killed: true},
		},
		{
			name: "blank lines ignored",
			meta: "time:0.001\n\nmax-rss:524288\n\n",
			want: isolateMeta{timeMs: 1, memoryKb: 512},
		},
		{
			name: "empty meta",
			meta: "",
			want: isolateMeta{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseMetaFile(tc.meta)
			if got != tc.want {
				t.Errorf("parseMetaFile(%q) = %+v, want %+v", tc.meta, got, tc.want)
			}
		})
	}
}

func TestDetermineVerdict(t *testing.T) {
	tests := []struct {
		name          string
		meta          isolateMeta
		exitCode      int
		timeLimitMs   int
		memoryLimitKb int
		want          models.Verdict
	}{
		{
			name: "isolate reports TO",
			meta: isolateMeta{status: "TO"},
			want: models.VerdictTimeLim,
		},
		{
			name:          "isolate reports SG with memory at cap",
			meta:          isolateMeta{status: "SG", killed: true, memoryKb: 262144},
			memoryLimitKb: 262144,
			want:          models.VerdictMemLim,
		},
		{
			name: "isolate reports SG without memory breach is runtime error",
			meta: isolateMeta{status: "SG", killed: true, memoryKb: 1024},
			// memoryLimitKb left zero: never treat as MLE without a real cap
			want: models.VerdictRuntime,
		},
		{
			name: "isolate reports RE",
			meta: isolateMeta{status: "RE"},
			want: models.VerdictRuntime,
		},
		{
			name: "isolate reports XX internal failure",
			meta: isolateMeta{status: "XX"},
			want: models.VerdictInternal,
		},
		{
			name:     "no status, nonzero exit",
			meta:     isolateMeta{},
			exitCode: 1,
			want:     models.VerdictRuntime,
		},
		{
			name:     "no status, zero exit, within limits",
			meta:     isolateMeta{timeMs: 50, memoryKb: 1024},
			exitCode: 0,
			want:     models.VerdictAccepted,
		},
		{
			name:        "no status, exactly at wall-time limit",
			meta:        isolateMeta{timeMs: 1000},
			exitCode:    0,
			timeLimitMs: 1000,
			want:        models.VerdictAccepted,
		},
		{
			name:        "no status, fallback time breach",
			meta:        isolateMeta{timeMs: 1001},
			exitCode:    0,
			timeLimitMs: 1000,
			want:        models.VerdictTimeLim,
		},
		{
			name:          "no status, exactly at memory limit",
			meta:          isolateMeta{memoryKb: 262144},
			exitCode:      0,
			memoryLimitKb: 262144,
			want:          models.VerdictAccepted,
		},
		{
			name:          "no status, fallback memory breach",
			meta:          isolateMeta{memoryKb: 262145},
			exitCode:      0,
			memoryLimitKb: 262144,
			want:          models.VerdictMemLim,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := determineVerdict(tc.meta, tc.exitCode, tc.timeLimitMs, tc.memoryLimitKb)
			if got != tc.want {
				t.Errorf("determineVerdict(%+v, %d, %d, %d) = %s, want %s",
					tc.meta, tc.exitCode, tc.timeLimitMs, tc.memoryLimitKb, got, tc.want)
			}
		})
	}
}

func TestGetLanguageConfig(t *testing.T) {
	cases := []struct {
		language       string
		wantCompileNil bool
		wantExecute    string
	}{
		{"cpp", false, "./program"},
		{"c", false, "./program"},
		{"java", false, "java Main"},
		{"python", true, "python3 code.py"},
		{"go", false, "./program"},
		{"unknown-lang", true, "python3 code.py"},
	}

	for _, c := range cases {
		cfg := getLanguageConfig(c.language)
		if (cfg.CompileCommand == nil) != c.wantCompileNil {
			t.Errorf("language %q: CompileCommand nil = %v, want %v", c.language, cfg.CompileCommand == nil, c.wantCompileNil)
		}
		if cfg.ExecuteCommand != c.wantExecute {
			t.Errorf("language %q: ExecuteCommand = %q, want %q", c.language, cfg.ExecuteCommand, c.wantExecute)
		}
	}
}

func TestGetFileExtension(t *testing.T) {
	cases := map[string]string{
		"cpp":     ".cpp",
		"python":  ".py",
		"unknown": ".txt",
	}
	for lang, want := range cases {
		if got := getFileExtension(lang); got != want {
			t.Errorf("getFileExtension(%q) = %q, want %q", lang, got, want)
		}
	}
}
