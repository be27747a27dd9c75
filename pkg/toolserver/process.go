package toolserver

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync/atomic"
)

// childProcess abstracts the spawned tool child so tests can substitute an
// in-process fake wired over pipes.
type childProcess interface {
	// WriteLine writes one newline-terminated frame to the child's stdin.
	WriteLine(line []byte) error
	// ReadLine blocks until one newline-terminated frame arrives on the
	// child's stdout. It unblocks with an error when the child dies.
	ReadLine() ([]byte, error)
	// Kill force-terminates the child and waits for it to be reaped so no
	// zombie is left behind.
	Kill()
	// Exited reports whether the child has terminated.
	Exited() bool
}

// spawnFunc creates and starts a child process. Injectable for tests.
type spawnFunc func() (childProcess, error)

// execProcess runs the tool child via os/exec with newline-framed streams.
// The child's stderr is discarded; tool-side logs must not interleave with
// the protocol stream.
type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	done   atomic.Bool
	waited chan struct{}
}

func spawnExec(command []string) (childProcess, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("empty tool command")
	}
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", command[0], err)
	}

	p := &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		waited: make(chan struct{}),
	}
	go func() {
		cmd.Wait()
		p.done.Store(true)
		close(p.waited)
	}()
	return p, nil
}

func (p *execProcess) WriteLine(line []byte) error {
	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

func (p *execProcess) ReadLine() ([]byte, error) {
	line, err := p.stdout.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return line, nil
}

func (p *execProcess) Kill() {
	p.cmd.Process.Kill()
	p.stdin.Close()
	<-p.waited
}

func (p *execProcess) Exited() bool {
	return p.done.Load()
}
