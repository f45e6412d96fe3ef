package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// toolRun is one execution of an Image's entrypoint+cmd against a
// materialised target, using a context.WithTimeout + CommandContext
// pattern against the Image's explicit entrypoint/cmd/env/volumes.
type toolRun struct {
	img     model.Image
	workDir string
	sample  string // absolute path to the materialised sample, if any
	onLine  func(stream string, line string)
}

// runResult is what the caller needs to build a Result: exit code and any
// process-launch error (as opposed to a nonzero exit, which is not itself
// an error here).
type runResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// run executes one tool invocation, streaming each output line through
// onLine as it arrives so the caller can append it to the log store
// without buffering the whole run in memory.
func (t toolRun) run(ctx context.Context) (runResult, error) {
	argv := append(append([]string{}, t.img.Entrypoint...), t.img.Cmd...)
	if len(argv) == 0 {
		return runResult{}, errs.New(errs.Validation, "image declares no entrypoint or cmd")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = t.workDir
	cmd.Env = buildEnv(t.img.Env, t.sample)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return runResult{}, errs.Wrap(errs.Internal, "attach stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return runResult{}, errs.Wrap(errs.Internal, "attach stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return runResult{}, errs.Wrap(errs.Unavailable, "start tool process", err)
	}

	var wg sync.WaitGroup
	var result runResult
	wg.Add(2)
	go func() { defer wg.Done(); result.Stdout = streamLines(stdout, "stdout", t.onLine) }()
	go func() { defer wg.Done(); result.Stderr = streamLines(stderr, "stderr", t.onLine) }()
	wg.Wait()

	err = cmd.Wait()
	if err == nil {
		result.ExitCode = 0
		return result, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if ctx.Err() != nil {
		return result, errs.Wrap(errs.Unavailable, "tool execution timed out", ctx.Err())
	}
	return result, errs.Wrap(errs.Internal, "run tool process", err)
}

// streamLines reads r line by line, invoking onLine for each and
// accumulating the full text for the caller's final record.
func streamLines(r io.Reader, stream string, onLine func(stream, line string)) string {
	var full []byte
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if onLine != nil {
			onLine(stream, line)
		}
		full = append(full, line...)
		full = append(full, '\n')
	}
	return string(full)
}

func buildEnv(extra map[string]string, sample string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	if sample != "" {
		env = append(env, "THORIUM_SAMPLE_PATH="+sample)
	}
	return env
}
