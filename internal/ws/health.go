package ws

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type HealthReport struct {
	Status                string        `json:"status"`
	UptimeSeconds         float64       `json:"uptimeSeconds"`
	Connections           int           `json:"connections"`
	AuthorizedConnections int           `json:"authorizedConnections"`
	SnapshotVersion       uint64        `json:"snapshotVersion"`
	Units                 int           `json:"units"`
	Process               *ProcessStats `json:"process,omitempty"`
}

type ProcessStats struct {
	PID      int32  `json:"pid"`
	RSSBytes uint64 `json:"rssBytes"`
	Threads  int32  `json:"threads"`
}

func currentProcessStats() (*ProcessStats, error) {
	pid := int32(os.Getpid())
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return nil, err
	}
	threads, err := p.NumThreads()
	if err != nil {
		return nil, err
	}
	return &ProcessStats{PID: pid, RSSBytes: mem.RSS, Threads: threads}, nil
}

func (s *Server) healthReport() HealthReport {
	snap := s.gateway.Snapshot()
	report := HealthReport{
		Status:                "ok",
		UptimeSeconds:         time.Since(s.started).Seconds(),
		Connections:           s.sessions.Count(),
		AuthorizedConnections: s.sessions.AuthorizedCount(),
		SnapshotVersion:       snap.Version,
		Units:                 len(snap.Units),
	}
	// Process stats are best effort; some platforms do not expose them.
	if stats, err := currentProcessStats(); err == nil {
		report.Process = stats
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.healthReport())
}
