package gpu

import "errors"

// Device is one local NVIDIA GPU as reported by NVML.
type Device struct {
	Index              int     `json:"index"`
	Name               string  `json:"name"`
	MemoryTotalMB      int64   `json:"memory_total_mb"`
	MemoryUsedMB       int64   `json:"memory_used_mb"`
	UtilizationPercent float64 `json:"utilization_percent"`
	TemperatureC       int     `json:"temperature_c"`
}

// ErrNVMLUnavailable reports a binary compiled without CGO/NVML support.
var ErrNVMLUnavailable = errors.New("local GPU stats unavailable (compiled without CGO/NVML support)")
