// Package facejob reads the file-based progress contract of the external
// facial-feature encoding job. The job itself runs out of process; this
// core only exposes its status, it never invokes or reimplements it.
package facejob

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fleetmon/pkg/models"
)

const (
	progressFile = "progress"
	logFile      = "encode.log"
	resultFile   = "features.dat"

	logTailLines = 20
)

// StatusReader reads the job directory. All reads are best-effort: a
// missing file means the corresponding state simply is not there yet.
type StatusReader struct {
	dir string
}

func NewStatusReader(dir string) *StatusReader {
	return &StatusReader{dir: dir}
}

// Status assembles the current job snapshot: progress in [0,100], the tail
// of the append-only log, and result-file existence plus mtime.
func (reader *StatusReader) Status() *models.FaceJobStatus {
	status := &models.FaceJobStatus{}

	if raw, err := os.ReadFile(filepath.Join(reader.dir, progressFile)); err == nil {
		if p, err := strconv.Atoi(strings.TrimSpace(string(raw))); err == nil {
			status.Progress = clamp(p, 0, 100)
			status.Running = status.Progress < 100
		}
	}

	if info, err := os.Stat(filepath.Join(reader.dir, resultFile)); err == nil {
		status.ResultReady = true
		mod := info.ModTime()
		status.ResultTime = &mod
		status.Running = false
	}

	if raw, err := os.ReadFile(filepath.Join(reader.dir, logFile)); err == nil {
		lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
		if len(lines) > logTailLines {
			lines = lines[len(lines)-logTailLines:]
		}
		if len(lines) > 0 && lines[0] != "" {
			status.LogTail = lines
		}
	}

	return status
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
