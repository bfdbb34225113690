// Package recovery implements the Recovery & Orphan Sweeper: the startup
// pass that reconciles persisted Stream Records against reality before the
// Supervisor Core begins serving new events.
package recovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/edgestream/streamsup/internal/model"
	"github.com/edgestream/streamsup/internal/recordstore"
	"github.com/edgestream/streamsup/internal/transcoder"
)

// procDir is overridable in tests; production always sweeps /proc.
var procDir = "/proc"

// Recover runs the three-step startup reconciliation: mark stale RUNNING
// records FAILED, terminate any externally-discoverable orphan transcoder
// not accounted for by the (empty, at startup) driver table, and stop any
// record still left RUNNING afterward. The store itself is not cleared
// here: the caller wipes it once Recover returns.
func Recover(ctx context.Context, logger *slog.Logger, store *recordstore.Store, driver *transcoder.Driver) error {
	if logger == nil {
		logger = slog.Default()
	}

	records, err := store.FindAll()
	if err != nil {
		return fmt.Errorf("recovery: load records: %w", err)
	}

	managed := make(map[int]string) // pid -> record id, for records we still believe are live

	for _, r := range records {
		if r.State != model.StateRunning {
			continue
		}
		if r.ProcessID != 0 && driver.IsProcessRunning(r.ProcessID) {
			managed[r.ProcessID] = r.ID
			continue
		}
		logger.Warn("recovery: stale running record, marking failed", "id", r.ID, "courtId", r.CourtID, "pid", r.ProcessID)
		if tErr := r.Transition(model.StateFailed, time.Now()); tErr != nil {
			logger.Error("recovery: invalid transition", "error", tErr)
			continue
		}
		if sErr := store.Save(r); sErr != nil {
			logger.Error("recovery: save failed", "error", sErr)
		}
	}

	sweepOrphans(logger, managed)

	running, err := store.FindRunning()
	if err != nil {
		return fmt.Errorf("recovery: reload running records: %w", err)
	}
	for _, r := range running {
		if r.ProcessID == 0 {
			continue
		}
		r.ExpectedExit = true
		if sErr := store.Save(r); sErr != nil {
			logger.Error("recovery: save before stop failed", "error", sErr)
		}
		driver.StopStream(r.ProcessID)
	}

	return nil
}

// sweepOrphans scans /proc for processes whose environment carries
// transcoder.RecordIDEnvVar and kills any that are not in managed: these are
// transcoders left running by a previous supervisor process (e.g. crashed
// without a clean shutdown) that this process never spawned.
func sweepOrphans(logger *slog.Logger, managed map[int]string) {
	entries, err := os.ReadDir(procDir)
	if err != nil {
		logger.Warn("recovery: cannot read /proc, skipping orphan sweep", "error", err)
		return
	}

	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		if _, ok := managed[pid]; ok {
			continue
		}
		recordID, ok := readRecordID(pid)
		if !ok {
			continue
		}
		logger.Warn("recovery: killing orphan transcoder", "pid", pid, "recordId", recordID)
		if proc, err := os.FindProcess(pid); err == nil {
			_ = proc.Kill()
		}
	}
}

// readRecordID reads /proc/<pid>/environ and returns the value of
// transcoder.RecordIDEnvVar, if present. environ entries are NUL-separated.
func readRecordID(pid int) (string, bool) {
	f, err := os.Open(filepath.Join(procDir, strconv.Itoa(pid), "environ"))
	if err != nil {
		return "", false
	}
	defer f.Close()

	prefix := transcoder.RecordIDEnvVar + "="
	scanner := bufio.NewScanner(f)
	scanner.Split(splitNUL)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		entry := scanner.Text()
		if strings.HasPrefix(entry, prefix) {
			return strings.TrimPrefix(entry, prefix), true
		}
	}
	return "", false
}

// splitNUL is a bufio.SplitFunc for NUL-separated /proc/<pid>/environ content.
func splitNUL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i + 1, data[0:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
