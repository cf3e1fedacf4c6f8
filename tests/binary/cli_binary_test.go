package binary_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func buildFleetCLI(t *testing.T) (string, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return "", err
	}

	binaryPath := filepath.Join(t.TempDir(), "vybium-fleet")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/vybium-fleet")
	cmd.Dir = projectRoot

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("build failed: %v, output: %s", err, string(output))
	}
	return binaryPath, nil
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

func runCLI(bin string, args ...string) (stdout, stderr string, exitCode int) {
	var out, errOut bytes.Buffer
	cmd := exec.Command(bin, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		exitCode = exitErr.ExitCode()
	default:
		exitCode = -1
	}
	return out.String(), errOut.String(), exitCode
}

// TestCLIExitStatuses drives the built binary through keygen, prove and
// verify and checks the documented exit statuses
func TestCLIExitStatuses(t *testing.T) {
	bin, err := buildFleetCLI(t)
	if err != nil {
		t.Skipf("Skipping test: failed to build vybium-fleet: %v", err)
	}
	dir := t.TempDir()
	key := filepath.Join(dir, "seal.key")
	receipt := filepath.Join(dir, "adder.receipt")

	if _, stderr, code := runCLI(bin, "keygen", "--out", key); code != 0 {
		t.Fatalf("keygen exit %d: %s", code, stderr)
	}

	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains string
	}{
		{"prove", []string{"prove", "--image", "adder", "--key", key, "--out", receipt, "--private", "3,4"}, 0, "journal: 0700000000000000"},
		{"verify", []string{"verify", "--image", "adder", "--pub", key + ".pub", receipt}, 0, "accepted"},
		{"wrong image", []string{"verify", "--image", "win", "--pub", key + ".pub", receipt}, 5, "rejected"},
		{"guest abort", []string{"prove", "--image", "adder", "--key", key, "--out", receipt + ".2", "--private", "3"}, 2, ""},
		{"image load", []string{"exec", "--image", filepath.Join(dir, "nope.vimg")}, 4, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stdout, stderr, code := runCLI(bin, tc.args...)
			if code != tc.exitCode {
				t.Fatalf("exit %d, want %d\nstdout: %s\nstderr: %s", code, tc.exitCode, stdout, stderr)
			}
			if tc.contains != "" && !strings.Contains(stdout, tc.contains) {
				t.Errorf("stdout %q does not contain %q", stdout, tc.contains)
			}
		})
	}
}

// TestProofFreshness proves the same inputs three times through the binary.
// Journals agree while receipts differ.
func TestProofFreshness(t *testing.T) {
	bin, err := buildFleetCLI(t)
	if err != nil {
		t.Skipf("Skipping test: failed to build vybium-fleet: %v", err)
	}
	dir := t.TempDir()
	key := filepath.Join(dir, "seal.key")
	if _, stderr, code := runCLI(bin, "keygen", "--out", key); code != 0 {
		t.Fatalf("keygen exit %d: %s", code, stderr)
	}

	seen := make(map[string]bool)
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("run%d.receipt", i))
		stdout, stderr, code := runCLI(bin, "prove", "--image", "adder", "--key", key, "--out", path, "--private", "20,22", "--log-level", "error")
		if code != 0 {
			t.Fatalf("run %d exit %d: %s", i, code, stderr)
		}
		if !strings.Contains(stdout, "journal: 2a00000000000000") {
			t.Errorf("run %d stdout = %q", i, stdout)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		seen[string(raw)] = true
	}
	if len(seen) != 3 {
		t.Errorf("got %d distinct receipts from 3 runs", len(seen))
	}
}
