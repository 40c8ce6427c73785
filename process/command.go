package process

import (
	"io"
	"time"
)

// DefaultGracePeriod is the SIGTERM to SIGKILL delay when Command.GracePeriod is zero.
const DefaultGracePeriod = 5 * time.Second

// Command configures a subprocess to execute.
type Command struct {
	// Binary is the executable path or name (resolved via PATH).
	Binary string
	// Args are the command-line arguments.
	Args []string
	// Dir is the working directory. If empty, uses the current directory.
	Dir string
	// Env is additional environment variables (key=value). Merged with os.Environ.
	Env []string
	// Stdin provides input to the process. May be nil.
	Stdin io.Reader
	// Output, if set, receives stdout and stderr as they are written, in
	// addition to the buffers in Result.
	Output io.Writer
	// GracePeriod is how long to wait after SIGTERM before SIGKILL.
	GracePeriod time.Duration
}

// Shell returns a Command that runs script with sh -c in dir.
func Shell(script, dir string) Command {
	return Command{
		Binary: "sh",
		Args:   []string{"-c", script},
		Dir:    dir,
	}
}
