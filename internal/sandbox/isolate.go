package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"judge-execution-service/internal/config"
	"judge-execution-service/internal/models"
)

// IsolateSandbox drives the isolate(1) sandbox binary: one box per
// compile/execute call, cleaned up unconditionally once the call returns.
type IsolateSandbox struct {
	config *config.IsolateConfig
}

type ExecutionResult struct {
	Verdict       models.Verdict
	Output        string
	Error         string
	ExecutionTime int
	MemoryUsed    int
	ExitCode      int
}

type CompileResult struct {
	Success bool
	Output  string
	Error   string
}

// isolateMeta is what isolate --meta writes out after a run.
type isolateMeta struct {
	timeMs   int
	memoryKb int
	status   string // "", "RE", "SG", "TO", "XX"
	exitCode int
	exitSig  int
	killed   bool
	message  string
}

func NewIsolateSandbox(cfg *config.IsolateConfig) *IsolateSandbox {
	return &IsolateSandbox{
		config: cfg,
	}
}

func (i *IsolateSandbox) GetPath() string {
	return i.config.Path
}

func (i *IsolateSandbox) Compile(ctx context.Context, language string, code []byte, timeLimit time.Duration) (*CompileResult, error) {
	boxID, err := i.CreateBox()
	if err != nil {
		return nil, fmt.Errorf("failed to create isolate box: %w", err)
	}
	defer i.CleanupBox(boxID)

	boxDir := i.GetBoxDir(boxID)
	codeFile := filepath.Join(boxDir, "code"+getFileExtension(language))

	err = os.WriteFile(codeFile, code, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to write code file: %w", err)
	}

	langConfig := getLanguageConfig(language)
	if langConfig.CompileCommand == nil {
		return &CompileResult{Success: true}, nil
	}

	compileCmd := strings.ReplaceAll(*langConfig.CompileCommand, "{input}", "code"+getFileExtension(language))
	compileCmd = strings.ReplaceAll(compileCmd, "{output}", "program")

	timeSec := int(timeLimit.Seconds())
	if timeSec < 1 {
		timeSec = 1
	}

	args := []string{
		"--box-id=" + strconv.Itoa(boxID),
		"--cg",
		"--cg-timing",
		"--processes=10",
		"--mem=262144",
		"--time=" + strconv.Itoa(timeSec),
		"--wall-time=" + strconv.Itoa(timeSec*2),
		"--fsize=16384",
		"--env=PATH=/usr/bin:/bin",
		"--dir=/etc:noexec",
		"--dir=/usr:noexec",
		"--dir=/lib:noexec",
		"--dir=/lib64:noexec",
		"--run",
		"--",
		"/bin/bash",
		"-c",
		compileCmd,
	}

	cmd := exec.CommandContext(ctx, i.config.Path, args...)
	cmd.Dir = boxDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return &CompileResult{
				Success: false,
				Output:  stdout.String(),
				Error:   stderr.String(),
			}, nil
		}
		return nil, fmt.Errorf("failed to run compile command: %w", err)
	}

	return &CompileResult{
		Success: true,
		Output:  stdout.String(),
		Error:   stderr.String(),
	}, nil
}

func (i *IsolateSandbox) Execute(ctx context.Context, language string, input []byte, timeLimit time.Duration, memoryLimit int) (*ExecutionResult, error) {
	boxID, err := i.CreateBox()
	if err != nil {
		return nil, fmt.Errorf("failed to create isolate box: %w", err)
	}
	defer i.CleanupBox(boxID)

	boxDir := i.GetBoxDir(boxID)
	inputFile := filepath.Join(boxDir, "input.txt")

	err = os.WriteFile(inputFile, input, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	langConfig := getLanguageConfig(language)
	runCmd := strings.ReplaceAll(langConfig.ExecuteCommand, "{executable}", "program")
	runCmd = strings.ReplaceAll(runCmd, "{input}", "code"+getFileExtension(language))
	runCmd = strings.ReplaceAll(runCmd, "{classname}", "Main")

	timeSec := int(timeLimit.Seconds())
	if timeSec < 1 {
		timeSec = 1
	}

	args := []string{
		"--box-id=" + strconv.Itoa(boxID),
		"--cg",
		"--cg-timing",
		"--processes=1",
		"--mem=" + strconv.Itoa(memoryLimit),
		"--time=" + strconv.Itoa(timeSec),
		"--wall-time=" + strconv.Itoa(timeSec*2),
		"--extra-time=0.5",
		"--stack=65536",
		"--fsize=16384",
		"--chdir=/box",
		"--env=HOME=/tmp",
		"--env=PATH=/usr/bin:/bin",
		"--dir=/etc:noexec",
		"--dir=/usr:noexec",
		"--dir=/lib:noexec",
		"--dir=/lib64:noexec",
		"--stdin=input.txt",
		"--stdout=output.txt",
		"--stderr=error.txt",
		"--meta=meta.txt",
		"--run",
		"--",
		"/bin/bash",
		"-c",
		runCmd,
	}

	cmd := exec.CommandContext(ctx, i.config.Path, args...)
	cmd.Dir = boxDir

	err = cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return i.parseExecutionResult(boxID, exitErr.ExitCode(), timeLimit, memoryLimit)
		}
		return nil, fmt.Errorf("failed to run execute command: %w", err)
	}

	return i.parseExecutionResult(boxID, 0, timeLimit, memoryLimit)
}

func (i *IsolateSandbox) parseExecutionResult(boxID int, exitCode int, timeLimit time.Duration, memoryLimit int) (*ExecutionResult, error) {
	boxDir := i.GetBoxDir(boxID)

	outputFile := filepath.Join(boxDir, "output.txt")
	errorFile := filepath.Join(boxDir, "error.txt")
	metaFile := filepath.Join(boxDir, "meta.txt")

	output, _ := os.ReadFile(outputFile)
	errorStr, _ := os.ReadFile(errorFile)
	meta, _ := os.ReadFile(metaFile)

	parsed := parseMetaFile(string(meta))
	if parsed.exitCode != 0 {
		exitCode = parsed.exitCode
	}

	result := &ExecutionResult{
		Output:        string(output),
		Error:         string(errorStr),
		ExitCode:      exitCode,
		ExecutionTime: parsed.timeMs,
		MemoryUsed:    parsed.memoryKb,
	}

	result.Verdict = determineVerdict(parsed, exitCode, int(timeLimit.Milliseconds()), memoryLimit)

	return result, nil
}

// parseMetaFile reads the isolate --meta file. The keys isolate writes
// (time, time-wall, max-rss, exitcode, exitsig, killed, message, status)
// are documented in isolate(1); status is empty on a normal exit and one
// of RE/SG/TO/XX when isolate itself determined the outcome.
func parseMetaFile(meta string) isolateMeta {
	var m isolateMeta
	for _, line := range strings.Split(meta, "\n") {
		line = strings.TrimSpace(line)
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "time":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				m.timeMs = int(v * 1000)
			}
		case "max-rss":
			if v, err := strconv.Atoi(val); err == nil {
				m.memoryKb = v / 1024
			}
		case "exitcode":
			m.exitCode, _ = strconv.Atoi(val)
		case "exitsig":
			m.exitSig, _ = strconv.Atoi(val)
		case "status":
			m.status = val
		case "message":
			m.message = val
		case "killed":
			m.killed = val == "1"
		}
	}
	return m
}

// determineVerdict always prefers isolate's own status field over
// heuristics derived from the reported counters: isolate already knows
// whether it killed the process for wall-time or cgroup memory, and
// deriving the same conclusion from thresholds risks disagreeing with it
// (e.g. a process that finishes just under the wall-time cap but is
// killed by the cgroup OOM killer first).
func determineVerdict(meta isolateMeta, exitCode, timeLimitMs, memoryLimitKb int) models.Verdict {
	switch meta.status {
	case "TO":
		return models.VerdictTimeLim
	case "SG":
		if meta.killed && memoryLimitKb > 0 && meta.memoryKb >= memoryLimitKb {
			return models.VerdictMemLim
		}
		return models.VerdictRuntime
	case "RE":
		return models.VerdictRuntime
	case "XX":
		return models.VerdictInternal
	}

	// No explicit status: isolate thinks the process ran to completion.
	if exitCode != 0 {
		return models.VerdictRuntime
	}

	// Defensive fallback only — isolate itself enforces --time/--wall-time
	// and --mem, so these thresholds should never fire in practice.
	if timeLimitMs > 0 && meta.timeMs > timeLimitMs {
		return models.VerdictTimeLim
	}
	if memoryLimitKb > 0 && meta.memoryKb > memoryLimitKb {
		return models.VerdictMemLim
	}

	return models.VerdictAccepted
}

func (i *IsolateSandbox) CreateBox() (int, error) {
	cmd := exec.Command(i.config.Path, "--init")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("failed to initialize isolate box: %w, output: %s", err, string(output))
	}

	boxIDStr := strings.TrimSpace(string(output))
	boxID, err := strconv.Atoi(boxIDStr)
	if err != nil {
		return 0, fmt.Errorf("failed to parse box ID: %w", err)
	}

	return boxID, nil
}

func (i *IsolateSandbox) CleanupBox(boxID int) {
	cmd := exec.Command(i.config.Path, "--box-id="+strconv.Itoa(boxID), "--cleanup")
	cmd.Run()
}

func (i *IsolateSandbox) GetBoxDir(boxID int) string {
	return filepath.Join(i.config.BoxRoot, fmt.Sprintf("%d", boxID))
}

func (i *IsolateSandbox) CleanupAll() error {
	cmd := exec.Command(i.config.Path, "--cleanup")
	return cmd.Run()
}

func getLanguageConfig(language string) models.SupportedLanguage {
	configs := map[string]models.SupportedLanguage{
		"cpp": {
			CompileCommand: stringPtr("g++ -O2 -std=c++17 -o program code.cpp"),
			ExecuteCommand: "./program",
		},
		"c": {
			CompileCommand: stringPtr("gcc -O2 -std=c11 -o program code.c"),
			ExecuteCommand: "./program",
		},
		"java": {
			CompileCommand: stringPtr("javac code.java"),
			ExecuteCommand: "java Main",
		},
		"python": {
			CompileCommand: nil,
			ExecuteCommand: "python3 code.py",
		},
		"go": {
			CompileCommand: stringPtr("go build -o program code.go"),
			ExecuteCommand: "./program",
		},
	}

	if cfg, exists := configs[language]; exists {
		return cfg
	}

	return models.SupportedLanguage{
		CompileCommand: nil,
		ExecuteCommand: "python3 code.py",
	}
}

func getFileExtension(language string) string {
	extensions := map[string]string{
		"cpp":    ".cpp",
		"c":      ".c",
		"java":   ".java",
		"python": ".py",
		"go":     ".go",
	}

	if ext, exists := extensions[language]; exists {
		return ext
	}
	return ".txt"
}

func stringPtr(s string) *string {
	return &s
}
