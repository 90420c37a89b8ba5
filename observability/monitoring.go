// Package observability keeps lightweight delivery counters and process
// self-stats for the inspect dashboard.
package observability

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

type Monitor struct {
	stored     atomic.Uint64
	pushed     atomic.Uint64
	pushFailed atomic.Uint64
	receipts   atomic.Uint64
	proc       *process.Process
	startedAt  time.Time
}

func NewMonitor() *Monitor {
	// Self-inspection failures are tolerated: counters still work without it.
	p, _ := process.NewProcess(int32(os.Getpid()))
	return &Monitor{proc: p, startedAt: time.Now().UTC()}
}

func (m *Monitor) IncStored() {
	if m != nil {
		m.stored.Add(1)
	}
}

func (m *Monitor) IncPushed() {
	if m != nil {
		m.pushed.Add(1)
	}
}

func (m *Monitor) IncPushFailed() {
	if m != nil {
		m.pushFailed.Add(1)
	}
}

func (m *Monitor) IncReceipts() {
	if m != nil {
		m.receipts.Add(1)
	}
}

// Snapshot gathers counters plus CPU and RSS of the current process.
func (m *Monitor) Snapshot() map[string]any {
	if m == nil {
		return map[string]any{}
	}
	stats := map[string]any{
		"MessagesStored": m.stored.Load(),
		"MessagesPushed": m.pushed.Load(),
		"PushFailures":   m.pushFailed.Load(),
		"ReceiptsSent":   m.receipts.Load(),
		"Uptime":         time.Since(m.startedAt).Round(time.Second).String(),
	}
	if m.proc != nil {
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats["CpuPercent"] = cpu
		}
		if mem, err := m.proc.MemoryInfo(); err == nil {
			stats["RssBytes"] = mem.RSS
		}
		if status, err := m.proc.Status(); err == nil {
			stats["PidStatus"] = status
		}
	}
	return stats
}
