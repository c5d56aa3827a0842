package domain

import (
	"fmt"
	"runtime"
)

const (
	// 单个 CPU 上允许调度的最大并行宽度
	hostWorkersPerCPU = 64
	// 单个分块允许的最大路径数
	hostMaxBlockSize = 1 << 24
)

// DeviceProperties 计算设备的并行能力描述，由调用方显式传给引擎
type DeviceProperties struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Cores        int    `json:"cores"`
	MaxWorkers   int    `json:"max_workers"`
	MaxBlockSize int    `json:"max_block_size"`
}

// HostDevices 当前进程可用的设备列表，仅包含宿主 CPU
func HostDevices() []DeviceProperties {
	cores := runtime.NumCPU()
	return []DeviceProperties{{
		ID:           0,
		Name:         fmt.Sprintf("host %s/%s", runtime.GOOS, runtime.GOARCH),
		Cores:        cores,
		MaxWorkers:   cores * hostWorkersPerCPU,
		MaxBlockSize: hostMaxBlockSize,
	}}
}

// DefaultWorkers 设备的推荐并行宽度
func (d DeviceProperties) DefaultWorkers() int {
	if d.Cores > 0 {
		return d.Cores
	}
	return 1
}

func (d DeviceProperties) String() string {
	return fmt.Sprintf("device %d (%s): cores=%d max_workers=%d max_block_size=%d",
		d.ID, d.Name, d.Cores, d.MaxWorkers, d.MaxBlockSize)
}

// SelectDevice 按序号选择设备
func SelectDevice(devices []DeviceProperties, index int) (DeviceProperties, error) {
	if index < 0 || index >= len(devices) {
		return DeviceProperties{}, fmt.Errorf("%w: index %d, %d device(s) present", ErrDeviceUnavailable, index, len(devices))
	}
	return devices[index], nil
}
