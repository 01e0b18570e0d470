package models

// MetricsSnapshot is one sampling tick of a host. The JSON names are the
// wire field names; clients match on name, never on position.
type MetricsSnapshot struct {
	OS          string  `json:"os"`
	Kernel      string  `json:"kernel"`
	HostName    string  `json:"host_name"`
	LocalIP     string  `json:"local_ip"`
	Uptime      uint64  `json:"uptime"`
	UsedMemory  uint64  `json:"used_memory"`
	FreeMemory  uint64  `json:"free_memory"`
	TotalMemory uint64  `json:"total_memory"`
	CPUUsage    float64 `json:"cpu_usage"`
}

// MemoryUsagePercent returns used/total as a percentage. ok is false when
// the total is unknown.
func (m MetricsSnapshot) MemoryUsagePercent() (float64, bool) {
	if m.TotalMemory == 0 {
		return 0, false
	}
	return float64(m.UsedMemory) / float64(m.TotalMemory) * 100, true
}

// HostInfo carries the slow-changing identity facts of a host.
type HostInfo struct {
	HostName string
	OS       string
	Kernel   string
}
