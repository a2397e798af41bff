package server

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/rebalancer/internal/database"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/httpapi"
	"github.com/aristath/rebalancer/internal/scheduler"
)

// SystemHandlers handles system-wide monitoring and job trigger endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	databases   []*database.DB
	scheduler   *scheduler.Scheduler
	jobs        map[string]scheduler.Job
	startupTime time.Time
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Goroutines    int               `json:"goroutines"`
	CPUPercent    float64           `json:"cpu_percent"`
	MemoryPercent float64           `json:"memory_percent"`
	Databases     map[string]string `json:"databases"`
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, databases []*database.DB, sched *scheduler.Scheduler, jobs []scheduler.Job) *SystemHandlers {
	byName := make(map[string]scheduler.Job, len(jobs))
	for _, job := range jobs {
		byName[job.Name()] = job
	}
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		databases:   databases,
		scheduler:   sched,
		jobs:        byName,
		startupTime: time.Now(),
	}
}

// HandleSystemStatus reports process, host and database health
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Databases:     make(map[string]string, len(h.databases)),
	}

	for _, db := range h.databases {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Databases[db.Name()] = err.Error()
			continue
		}
		resp.Databases[db.Name()] = "ok"
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, resp)
}

// HandleJobsStatus lists registered jobs with their last outcome
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	statuses := []scheduler.JobStatus{}
	if h.scheduler != nil {
		statuses = h.scheduler.Status()
	}
	httpapi.WriteJSON(w, h.log, http.StatusOK, statuses)
}

// HandleRunJob triggers a job by name outside its schedule
// POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		httpapi.WriteError(w, h.log, fmt.Errorf("%w: job %s", domain.ErrNotFound, name))
		return
	}

	var err error
	if h.scheduler != nil {
		err = h.scheduler.RunNow(job)
	} else {
		err = job.Run()
	}
	if err != nil {
		httpapi.WriteError(w, h.log, fmt.Errorf("job %s failed: %w", name, err))
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]string{
		"job":    name,
		"status": "completed",
	})
}

// getSystemStats returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
