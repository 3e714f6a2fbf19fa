package capability

import (
	"bytes"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// managedProcess is one background process owned by a ProcessManager.
type managedProcess struct {
	id      string
	command string
	cmd     *exec.Cmd
	output  *boundedBuffer
	started time.Time
}

// boundedBuffer keeps the most recent maxBytes of written data. Dev servers
// log indefinitely; only the recent tail is useful for diagnostics.
type boundedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	maxBytes int
}

func newBoundedBuffer(maxBytes int) *boundedBuffer {
	return &boundedBuffer{maxBytes: maxBytes}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if b.buf.Len() > b.maxBytes {
		data := b.buf.Bytes()
		trimmed := make([]byte, b.maxBytes)
		copy(trimmed, data[len(data)-b.maxBytes:])
		b.buf.Reset()
		b.buf.Write(trimmed)
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ProcessInfo describes a running managed process.
type ProcessInfo struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	PID     int    `json:"pid"`
	Uptime  string `json:"uptime"`
}

// ProcessManager starts and stops long-running background processes, such
// as dev servers, by opaque identifier. It is owned by the host and injected
// wherever process control is needed.
type ProcessManager struct {
	workspace *Workspace
	mu        sync.Mutex
	procs     map[string]*managedProcess
}

// NewProcessManager creates a manager bound to the given workspace.
func NewProcessManager(ws *Workspace) *ProcessManager {
	return &ProcessManager{
		workspace: ws,
		procs:     make(map[string]*managedProcess),
	}
}

// Start launches a shell command as a background process and returns its
// identifier. The process runs in its own group so Stop can kill the whole
// tree.
func (m *ProcessManager) Start(command, workingDir string) (string, error) {
	if workingDir == "" {
		workingDir = m.workspace.Root()
	} else {
		workingDir = m.workspace.resolve(workingDir)
	}

	shell, shellArg := shellFor()
	cmd := exec.Command(shell, shellArg, command)
	cmd.Dir = workingDir
	cmd.Env = filterEnvironment()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	output := newBoundedBuffer(64 * 1024)
	cmd.Stdout = output
	cmd.Stderr = output

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start process: %w", err)
	}

	id := uuid.New().String()
	proc := &managedProcess{
		id:      id,
		command: command,
		cmd:     cmd,
		output:  output,
		started: time.Now(),
	}

	// Reap the process when it exits on its own.
	go func() { _ = cmd.Wait() }()

	m.mu.Lock()
	m.procs[id] = proc
	m.mu.Unlock()

	return id, nil
}

// Stop terminates a managed process by identifier. SIGTERM first, SIGKILL
// after a grace period.
func (m *ProcessManager) Stop(id string) error {
	m.mu.Lock()
	proc, ok := m.procs[id]
	if ok {
		delete(m.procs, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("no process with id %q", id)
	}
	return m.terminate(proc)
}

func (m *ProcessManager) terminate(proc *managedProcess) error {
	if proc.cmd.Process == nil {
		return nil
	}
	pgid := -proc.cmd.Process.Pid

	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		// Already gone.
		return nil
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			if syscall.Kill(pgid, 0) != nil {
				close(done)
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
		close(done)
	}()
	<-done

	if syscall.Kill(pgid, 0) == nil {
		_ = syscall.Kill(pgid, syscall.SIGKILL)
	}
	return nil
}

// StopAll terminates every managed process. The first error is returned,
// but all processes are attempted.
func (m *ProcessManager) StopAll() error {
	m.mu.Lock()
	procs := make([]*managedProcess, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.procs = make(map[string]*managedProcess)
	m.mu.Unlock()

	var firstErr error
	for _, p := range procs {
		if err := m.terminate(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Output returns the recent output tail of a managed process.
func (m *ProcessManager) Output(id string) (string, error) {
	m.mu.Lock()
	proc, ok := m.procs[id]
	m.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("no process with id %q", id)
	}
	return proc.output.String(), nil
}

// List returns info for all managed processes, sorted by start time.
func (m *ProcessManager) List() []ProcessInfo {
	m.mu.Lock()
	procs := make([]*managedProcess, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.mu.Unlock()

	sort.Slice(procs, func(i, j int) bool { return procs[i].started.Before(procs[j].started) })

	infos := make([]ProcessInfo, len(procs))
	for i, p := range procs {
		pid := 0
		if p.cmd.Process != nil {
			pid = p.cmd.Process.Pid
		}
		infos[i] = ProcessInfo{
			ID:      p.id,
			Command: p.command,
			PID:     pid,
			Uptime:  time.Since(p.started).Round(time.Second).String(),
		}
	}
	return infos
}
