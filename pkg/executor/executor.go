package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Stages reported with a Result so callers can tell which phase produced the
// output. A compile failure carries the compiler diagnostic and skips the run.
const (
	StageCompile = "compile"
	StageRun     = "run"
	StageSpawn   = "spawn"
)

var ErrUnsupportedLanguage = errors.New("executor: unsupported language")

// Result captures the observable outcome of one execution request.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Stage    string
}

// Runner compiles or interprets submitted source text in a throwaway
// directory. Every invocation gets its own directory which is removed on all
// exit paths, including spawn failures.
type Runner struct {
	tempDir     string
	cppCompiler string
	pythonBin   string
}

func NewRunner(tempDir, cppCompiler, pythonBin string) (*Runner, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("executor: failed to create temp dir: %w", err)
	}
	return &Runner{
		tempDir:     tempDir,
		cppCompiler: cppCompiler,
		pythonBin:   pythonBin,
	}, nil
}

// Run dispatches on the language tag. The context bounds the whole job: when
// it is cancelled the child process is killed.
func (r *Runner) Run(ctx context.Context, language, source string) (*Result, error) {
	switch language {
	case "cpp":
		return r.runCpp(ctx, source)
	case "python":
		return r.runPython(ctx, source)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
}

func (r *Runner) runCpp(ctx context.Context, source string) (*Result, error) {
	dir, err := os.MkdirTemp(r.tempDir, "job-")
	if err != nil {
		return nil, fmt.Errorf("executor: failed to create job dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "main.cpp")
	binPath := filepath.Join(dir, "main.out")
	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("executor: failed to write source: %w", err)
	}

	compileRes, err := r.runCommand(ctx, StageCompile, r.cppCompiler, srcPath, "-o", binPath)
	if err != nil {
		return nil, err
	}
	if compileRes.ExitCode != 0 {
		// Compiler diagnostic is the sole output; nothing gets executed.
		return compileRes, nil
	}

	return r.runCommand(ctx, StageRun, binPath)
}

func (r *Runner) runPython(ctx context.Context, source string) (*Result, error) {
	dir, err := os.MkdirTemp(r.tempDir, "job-")
	if err != nil {
		return nil, fmt.Errorf("executor: failed to create job dir: %w", err)
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "main.py")
	if err := os.WriteFile(srcPath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("executor: failed to write source: %w", err)
	}

	return r.runCommand(ctx, StageRun, r.pythonBin, srcPath)
}

// runCommand spawns the process with no stdin and captures both streams.
// A non-zero exit is a normal Result; only spawn-level problems (missing
// binary, permission) surface as an error.
func (r *Runner) runCommand(ctx context.Context, stage, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		Stage:  stage,
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("executor: %s cancelled: %w", stage, ctx.Err())
		}
		return nil, fmt.Errorf("executor: failed to spawn %s: %w", name, err)
	}
	return res, nil
}
