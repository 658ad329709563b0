package validation

import (
	"bytes"
	"strings"
	"testing"
)

func TestValidateCode_SizeBoundary(t *testing.T) {
	validator := NewCodeValidator(defaultConfig())

	atLimit := bytes.Repeat([]byte("a"), 1048576)
	result := validator.ValidateCode(atLimit, "code.py")
	if hasViolationType(result, "code_size_exceeded") {
		t.Errorf("code at exactly 1 MiB should not trip code_size_exceeded, got violations: %+v", result.Violations)
	}

	overLimit := bytes.Repeat([]byte("a"), 1048577)
	result = validator.ValidateCode(overLimit, "code.py")
	if !hasViolationType(result, "code_size_exceeded") {
		t.Errorf("code at 1 MiB + 1 byte should trip code_size_exceeded")
	}
	if result.IsValid {
		t.Errorf("code over the size ceiling must be rejected")
	}
}

func TestValidateCode_BlacklistedPatternIsCritical(t *testing.T) {
	validator := NewCodeValidator(defaultConfig())

	code := []byte(`#include <stdio.h>
int main() { system("rm -rf /"); return 0; }`)

	result := validator.ValidateCode(code, "code.c")
	if result.IsValid {
		t.Fatalf("expected code calling system() to be invalid")
	}

	found := false
	for _, v := range result.Violations {
		if v.Type == "blacklisted_pattern" && v.Severity == "critical" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a critical blacklisted_pattern violation, got: %+v", result.Violations)
	}
}

func TestValidateCode_SuspiciousPatternIsNonBlocking(t *testing.T) {
	validator := NewCodeValidator(defaultConfig())

	code := []byte("import socket\nprint('hello')\n")
	result := validator.ValidateCode(code, "code.py")

	if !result.IsValid {
		t.Errorf("a suspicious (non-critical) pattern alone must not block execution, violations: %+v", result.Violations)
	}
	if !hasViolationType(result, "suspicious_pattern") {
		t.Errorf("expected the suspicious import to be logged as a suspicious_pattern violation")
	}
}

func TestValidateCode_InvalidEncodingRejected(t *testing.T) {
	validator := NewCodeValidator(defaultConfig())

	invalidUTF8 := []byte{0xff, 0xfe, 0xfd}
	result := validator.ValidateCode(invalidUTF8, "code.py")
	if result.IsValid {
		t.Errorf("invalid UTF-8 must be rejected")
	}
}

func TestValidateCode_PythonDangerousImport(t *testing.T) {
	validator := NewCodeValidator(defaultConfig())

	code := []byte("import subprocess\nsubprocess.run(['ls'])\n")
	result := validator.ValidateCode(code, "code.py")

	if !hasViolationType(result, "python_dangerous_import") {
		t.Errorf("expected python_dangerous_import violation for subprocess usage, got: %+v", result.Violations)
	}
}

func hasViolationType(result *ValidationResult, violationType string) bool {
	for _, v := range result.Violations {
		if v.Type == violationType {
			return true
		}
	}
	return false
}

func defaultConfig() *ValidationConfig {
	return (&CodeValidator{}).GetDefaultConfig()
}

func validator() *CodeValidator {
	return NewCodeValidator(&ValidationConfig{})
}

func TestCalculateMaxNestingDepth(t *testing.T) {
	cv := validator()
	cases := []struct {
		code string
		want int
	}{
		{"int main() { if (x) { y(); } }", 2},
		{"flat code with no braces", 0},
		{"{{{}}}", 3},
	}
	for _, c := range cases {
		if got := cv.calculateMaxNestingDepth(c.code); got != c.want {
			t.Errorf("calculateMaxNestingDepth(%q) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestContainsHardcodedSecrets(t *testing.T) {
	cv := validator()
	if !cv.containsHardcodedSecrets(`password = "hunter2"`) {
		t.Errorf("expected a quoted password assignment to be flagged")
	}
	if cv.containsHardcodedSecrets(strings.TrimSpace("x = 1")) {
		t.Errorf("plain assignment should not be flagged as a secret")
	}
}
