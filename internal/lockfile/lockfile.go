// Package lockfile keeps a single process in charge of the local store.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/logger"
)

var (
	findProcessFunc = ps.FindProcess
	executableName  = func() string { return filepath.Base(os.Args[0]) }
	getpid          = os.Getpid
)

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("local store is in use by another process")

// Holder describes the process recorded in a lockfile.
type Holder struct {
	PID        int
	Executable string
	Since      time.Time
}

type Lock struct {
	path string
	pid  int
}

// Path returns the lockfile path for a data file.
func Path(dataPath string) string {
	return filepath.Join(filepath.Dir(dataPath), constants.LockfileName)
}

// Acquire takes the lock at path. A lock left behind by a process that is no
// longer running, or whose PID now belongs to another program, is taken over.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		l, err := create(path)
		if err == nil {
			return l, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lockfile: %w", err)
		}

		holder, rerr := Read(path)
		if rerr == nil && isAlive(holder) {
			return nil, fmt.Errorf("%w (pid %d, %s)", ErrLocked, holder.PID, holder.Executable)
		}
		logger.Warn("Removing stale lockfile", "path", path, "error", rerr, "pid", holder.PID)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: lockfile keeps reappearing", ErrLocked)
}

func create(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, err
	}
	pid := getpid()
	content := fmt.Sprintf("%d|%s|%s\n", pid, executableName(), time.Now().UTC().Format(time.RFC3339))
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return &Lock{path: path, pid: pid}, nil
}

// Read parses the lockfile at path.
func Read(path string) (Holder, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return Holder{}, errors.New("lockfile is malformed")
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		return Holder{}, errors.New("invalid process ID in lockfile")
	}
	exe := strings.TrimSpace(parts[1])
	if exe == "" {
		return Holder{}, errors.New("executable in lockfile is empty")
	}
	since, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return Holder{}, errors.New("invalid timestamp in lockfile")
	}
	return Holder{PID: pid, Executable: exe, Since: since}, nil
}

func isAlive(h Holder) bool {
	process, err := findProcessFunc(h.PID)
	if err != nil || process == nil {
		return false
	}
	// Linux truncates process names to 15 bytes.
	exe := process.Executable()
	return exe != "" && (strings.HasPrefix(exe, h.Executable) || strings.HasPrefix(h.Executable, exe))
}

// Release removes the lockfile if this lock still owns it.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	h, err := Read(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if h.PID != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}
