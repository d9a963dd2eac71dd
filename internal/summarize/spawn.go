package summarize

import (
	"fmt"
	"os"
	"os/exec"
)

// WorkerCommand is the hidden subcommand the detached process runs.
const WorkerCommand = "summarize-worker"

// Spawner starts a summarization job without waiting for it.
type Spawner interface {
	Spawn(job Job) error
}

// Detached re-executes a binary as a session leader with stdio on the null
// device. The child survives the parent's exit and the parent never waits.
type Detached struct {
	Executable string // defaults to the running binary
}

// Args returns the command line the child runs. Positional arguments follow
// "--" so a path starting with a dash is not read as a flag.
func (j Job) Args() []string {
	return []string{WorkerCommand, "--db", j.DBPath, "--", j.SessionID, j.TranscriptPath}
}

func (d Detached) Spawn(job Job) error {
	exe := d.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return fmt.Errorf("summarize: locate executable: %w", err)
		}
	}

	cmd := exec.Command(exe, job.Args()...)
	cmd.SysProcAttr = detachAttr()
	// nil stdio means the null device
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("summarize: spawn worker: %w", err)
	}
	return cmd.Process.Release()
}
