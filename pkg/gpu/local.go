//go:build cgo

package gpu

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// LocalDevices queries the local NVIDIA GPUs through NVML.
func LocalDevices() ([]Device, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("%w: NVML init failed: %v", ErrNVMLUnavailable, nvml.ErrorString(ret))
	}
	defer func() { _ = nvml.Shutdown() }()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("query device count: %v", nvml.ErrorString(ret))
	}

	devices := make([]Device, 0, count)
	for i := 0; i < count; i++ {
		handle, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("get device %d: %v", i, nvml.ErrorString(ret))
		}

		device := Device{Index: i}
		if name, ret := handle.GetName(); ret == nvml.SUCCESS {
			device.Name = name
		}
		if memory, ret := handle.GetMemoryInfo(); ret == nvml.SUCCESS {
			device.MemoryTotalMB = int64(memory.Total / 1024 / 1024)
			device.MemoryUsedMB = int64(memory.Used / 1024 / 1024)
		}
		if utilization, ret := handle.GetUtilizationRates(); ret == nvml.SUCCESS {
			device.UtilizationPercent = float64(utilization.Gpu)
		}
		if temperature, ret := handle.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
			device.TemperatureC = int(temperature)
		}
		devices = append(devices, device)
	}
	return devices, nil
}
