package mcp

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"weft/internal/async"
	"weft/internal/logging"
)

// process runs one tool-server executable and owns its stdio pipes.
type process struct {
	command string
	args    []string
	env     []string
	logger  logging.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	running  bool
	waitDone chan error
}

func newProcess(command string, args []string, env map[string]string, logger logging.Logger) *process {
	p := &process{
		command: command,
		args:    args,
		logger:  logging.OrNop(logger),
	}
	for k, v := range env {
		p.env = append(p.env, fmt.Sprintf("%s=%s", k, v))
	}
	return p
}

func (p *process) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("process already running")
	}

	resolved, err := resolveExecutable(p.command)
	if err != nil {
		return err
	}

	// Deliberately not CommandContext: the manager owns shutdown and a
	// cancelled start context must not kill an already-adopted server.
	p.cmd = exec.Command(resolved, p.args...)
	if len(p.env) > 0 {
		p.cmd.Env = p.env
	}

	if p.stdin, err = p.cmd.StdinPipe(); err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if p.stdout, err = p.cmd.StdoutPipe(); err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if p.stderr, err = p.cmd.StderrPipe(); err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	p.running = true
	p.waitDone = make(chan error, 1)
	p.logger.Info("Tool server started: %s (pid %d)", p.command, p.cmd.Process.Pid)

	async.Go(p.logger, "mcp.monitorStderr", p.monitorStderr)
	cmd, waitDone := p.cmd, p.waitDone
	async.Go(p.logger, "mcp.waitProcess", func() {
		waitDone <- cmd.Wait()
	})

	return nil
}

func resolveExecutable(command string) (string, error) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return "", fmt.Errorf("command is required")
	}
	if strings.Contains(trimmed, "\x00") {
		return "", fmt.Errorf("command contains invalid characters")
	}
	resolved, err := exec.LookPath(trimmed)
	if err != nil {
		return "", fmt.Errorf("command not found: %w", err)
	}
	return resolved, nil
}

// stop closes stdin to request a graceful exit, then kills on timeout.
func (p *process) stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cmd, stdin, waitDone := p.cmd, p.stdin, p.waitDone
	p.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}

	select {
	case err := <-waitDone:
		p.logger.Info("Tool server exited: %v", err)
		return nil
	case <-time.After(timeout):
		p.logger.Warn("Graceful shutdown timeout, killing %s", p.command)
		if cmd != nil && cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				return fmt.Errorf("failed to kill process: %w", err)
			}
		}
		return nil
	}
}

func (p *process) isRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *process) write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.stdin == nil {
		return fmt.Errorf("process not running")
	}
	n, err := p.stdin.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to stdin: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d/%d bytes", n, len(data))
	}
	return nil
}

func (p *process) reader() io.Reader { return p.stdout }

func (p *process) monitorStderr() {
	if p.stderr == nil {
		return
	}
	scanner := bufio.NewScanner(p.stderr)
	for scanner.Scan() {
		p.logger.Debug("[stderr] %s", scanner.Text())
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		p.logger.Error("Error reading stderr: %v", err)
	}
}
