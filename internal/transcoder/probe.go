package transcoder

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"
)

// DetectAudio runs a short ffprobe-style read of cameraURL and reports
// whether at least one audio stream is advertised. It must never return
// true on timeout or error: both paths return false, nil-equivalent to "no
// audio detected", consistent with a hard-fail-closed probe.
func (d *Driver) DetectAudio(ctx context.Context, cameraURL string) bool {
	probePath := d.cfg.FFprobePath
	if probePath == "" {
		probePath = "ffprobe"
	}

	readWindow := DefaultProbeReadWindow
	wallClock := DefaultProbeTimeout

	probeCtx, cancel := context.WithTimeout(ctx, wallClock)
	defer cancel()

	args := []string{
		"-v", "error",
		"-rtsp_transport", "tcp",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		cameraURL,
	}
	// #nosec G204 -- ffprobe path is validated configuration, cameraURL comes
	// from a Stream Record previously validated by the supervisor.
	cmd := exec.CommandContext(probeCtx, probePath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false
	}
	if err := cmd.Start(); err != nil {
		return false
	}

	readCtx, readCancel := context.WithTimeout(probeCtx, readWindow)
	defer readCancel()

	found := make(chan bool, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), "audio") {
				found <- true
				return
			}
		}
		found <- false
	}()

	var hasAudio bool
	select {
	case hasAudio = <-found:
	case <-readCtx.Done():
		hasAudio = false
	}

	_ = cmd.Process.Kill()
	_ = cmd.Wait()

	return hasAudio
}
