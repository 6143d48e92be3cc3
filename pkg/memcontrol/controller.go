package memcontrol

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/T3-Labs/coop-cam/pkg/logger"
)

type MemoryLevel int

const (
	MemoryNormal MemoryLevel = iota
	MemoryWarning
	MemoryCritical
	MemoryEmergency
)

func (ml MemoryLevel) String() string {
	switch ml {
	case MemoryNormal:
		return "NORMAL"
	case MemoryWarning:
		return "WARNING"
	case MemoryCritical:
		return "CRITICAL"
	case MemoryEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

type MemoryStats struct {
	RSSBytes     uint64
	SystemTotal  uint64
	UsagePercent float64
	Level        MemoryLevel
	Timestamp    time.Time
}

type ThresholdConfig struct {
	MaxMemoryMB      uint64
	WarningPercent   float64
	CriticalPercent  float64
	EmergencyPercent float64
	CheckInterval    time.Duration
}

// Controller vigia o RSS do processo e aciona callbacks de alívio (descarte
// do histórico de interpolação, GC forçado) quando a pressão sobe.
type Controller struct {
	mu           sync.RWMutex
	config       ThresholdConfig
	currentLevel MemoryLevel
	stats        MemoryStats
	callbacks    map[MemoryLevel][]func(MemoryStats)
	proc         *process.Process

	ctx    context.Context
	cancel context.CancelFunc
}

func NewController(maxMemoryMB uint64) *Controller {
	if maxMemoryMB == 0 {
		if vmem, err := mem.VirtualMemory(); err == nil {
			maxMemoryMB = uint64(float64(vmem.Total/1024/1024) * 0.5)
		}
		if maxMemoryMB < 256 {
			maxMemoryMB = 256
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil && logger.Log != nil {
		logger.Log.Warnw("Não foi possível inspecionar o próprio processo", "error", err)
	}

	c := &Controller{
		config: ThresholdConfig{
			MaxMemoryMB:      maxMemoryMB,
			WarningPercent:   60.0,
			CriticalPercent:  75.0,
			EmergencyPercent: 85.0,
			CheckInterval:    2 * time.Second,
		},
		currentLevel: MemoryNormal,
		callbacks:    make(map[MemoryLevel][]func(MemoryStats)),
		proc:         proc,
		ctx:          ctx,
		cancel:       cancel,
	}

	if logger.Log != nil {
		logger.Log.Infow("Watchdog de memória inicializado",
			"max_memory_mb", maxMemoryMB,
			"warning_percent", c.config.WarningPercent,
			"critical_percent", c.config.CriticalPercent,
			"emergency_percent", c.config.EmergencyPercent)
	}

	return c
}

// OnLevel registra um callback disparado sempre que o nível indicado é
// atingido (na transição e a cada checagem enquanto durar).
func (c *Controller) OnLevel(level MemoryLevel, fn func(MemoryStats)) {
	c.mu.Lock()
	c.callbacks[level] = append(c.callbacks[level], fn)
	c.mu.Unlock()
}

func (c *Controller) Start() {
	go c.monitorLoop()
}

func (c *Controller) Stop() {
	c.cancel()
}

func (c *Controller) Stats() MemoryStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Controller) monitorLoop() {
	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sample()
			c.checkAndAct()
		}
	}
}

func (c *Controller) sample() {
	var rss uint64
	if c.proc != nil {
		if memInfo, err := c.proc.MemoryInfo(); err == nil {
			rss = memInfo.RSS
		}
	}

	var total uint64
	if vmem, err := mem.VirtualMemory(); err == nil {
		total = vmem.Total
	}

	rssMB := rss / 1024 / 1024
	usagePercent := (float64(rssMB) / float64(c.config.MaxMemoryMB)) * 100

	c.mu.Lock()
	c.stats = MemoryStats{
		RSSBytes:     rss,
		SystemTotal:  total,
		UsagePercent: usagePercent,
		Level:        c.determineLevel(usagePercent),
		Timestamp:    time.Now(),
	}
	c.mu.Unlock()
}

func (c *Controller) determineLevel(usagePercent float64) MemoryLevel {
	switch {
	case usagePercent >= c.config.EmergencyPercent:
		return MemoryEmergency
	case usagePercent >= c.config.CriticalPercent:
		return MemoryCritical
	case usagePercent >= c.config.WarningPercent:
		return MemoryWarning
	default:
		return MemoryNormal
	}
}

func (c *Controller) checkAndAct() {
	c.mu.Lock()
	stats := c.stats
	oldLevel := c.currentLevel
	c.currentLevel = stats.Level
	c.mu.Unlock()

	if stats.Level != oldLevel && logger.Log != nil {
		logger.Log.Warnw("Nível de memória alterado",
			"old_level", oldLevel.String(),
			"new_level", stats.Level.String(),
			"usage_percent", fmt.Sprintf("%.2f%%", stats.UsagePercent),
			"rss_mb", stats.RSSBytes/1024/1024)
	}

	if stats.Level == MemoryNormal {
		return
	}

	c.notifyCallbacks(stats.Level, stats)

	if stats.Level == MemoryEmergency {
		// Último recurso antes do OOM killer
		debug.FreeOSMemory()
		if logger.Log != nil {
			logger.Log.Warn("Memória devolvida ao sistema operacional")
		}
	}
}

func (c *Controller) notifyCallbacks(level MemoryLevel, stats MemoryStats) {
	c.mu.RLock()
	fns := append([]func(MemoryStats){}, c.callbacks[level]...)
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(stats)
	}
}
