package api

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/energizer-project/matchgate/internal/util"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": util.AppName,
		"version": util.Version,
	})
}

// handleInfo returns host details and counters.
func (s *Server) handleInfo(c *gin.Context) {
	ctx := c.Request.Context()
	sysInfo := util.GetSystemInfo()

	resp := gin.H{
		"name":            s.cfg.GetService().Name,
		"version":         util.Version,
		"uptime_sec":      int64(time.Since(s.started).Seconds()),
		"hostname":        sysInfo.Hostname,
		"os":              sysInfo.OS,
		"cpu_model":       sysInfo.CPUModel,
		"cpu_cores":       sysInfo.CPUCores,
		"total_memory_mb": sysInfo.TotalMemory,
		"report_layout":   s.deps.Engine.Layout(),
	}

	if mem, err := util.GetMemoryUsage(); err == nil {
		resp["memory_used_percent"] = mem.UsedPercent
	}
	if disk, err := util.GetDiskUsage(filepath.Dir(s.cfg.GetService().DatabasePath)); err == nil {
		resp["disk"] = disk
	}
	if s.deps.Stats != nil {
		if counts, err := s.deps.Stats.SessionCounts(ctx); err == nil {
			resp["sessions"] = counts
		}
		if reports, err := s.deps.Stats.ReportStats(ctx); err == nil {
			resp["reports"] = reports
		}
	}
	if certs, err := s.deps.Pool.Stats(ctx); err == nil {
		resp["certificates"] = certs
	}

	c.JSON(http.StatusOK, resp)
}
