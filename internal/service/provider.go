package service

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/models"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostProvider is the narrow view of the operating system the sampler
// needs. Each call reads current values and keeps no state between calls.
type HostProvider interface {
	CPUTimes() (cpu.TimesStat, error)
	Memory() (used, free, total uint64, err error)
	Uptime() (uint64, error)
	HostInfo() (models.HostInfo, error)
}

// SystemStatFetcher holds the gopsutil entry points. Tests swap them out.
type SystemStatFetcher struct {
	CPUTimes      func(percpu bool) ([]cpu.TimesStat, error)
	VirtualMemory func() (*mem.VirtualMemoryStat, error)
	HostUptime    func() (uint64, error)
	HostInfo      func() (*host.InfoStat, error)
}

// SystemProvider reads host metrics through gopsutil.
type SystemProvider struct {
	fetcher SystemStatFetcher
}

func NewSystemProvider() *SystemProvider {
	return &SystemProvider{
		fetcher: SystemStatFetcher{
			CPUTimes:      cpu.Times,
			VirtualMemory: mem.VirtualMemory,
			HostUptime:    host.Uptime,
			HostInfo:      host.Info,
		},
	}
}

// SetFetcher sets a custom fetcher for testing.
func (p *SystemProvider) SetFetcher(fetcher SystemStatFetcher) {
	p.fetcher = fetcher
}

// CPUTimes returns the cumulative times of all CPUs combined.
func (p *SystemProvider) CPUTimes() (cpu.TimesStat, error) {
	times, err := p.fetcher.CPUTimes(false)
	if err != nil {
		return cpu.TimesStat{}, fmt.Errorf("%w: cpu: %v", errs.ErrFieldUnavailable, err)
	}
	if len(times) == 0 {
		return cpu.TimesStat{}, fmt.Errorf("%w: cpu: no readings", errs.ErrFieldUnavailable)
	}
	return times[0], nil
}

func (p *SystemProvider) Memory() (used, free, total uint64, err error) {
	v, err := p.fetcher.VirtualMemory()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: memory: %v", errs.ErrFieldUnavailable, err)
	}
	return v.Used, v.Free, v.Total, nil
}

func (p *SystemProvider) Uptime() (uint64, error) {
	u, err := p.fetcher.HostUptime()
	if err != nil {
		return 0, fmt.Errorf("%w: uptime: %v", errs.ErrFieldUnavailable, err)
	}
	return u, nil
}

func (p *SystemProvider) HostInfo() (models.HostInfo, error) {
	info, err := p.fetcher.HostInfo()
	if err != nil {
		return models.HostInfo{}, fmt.Errorf("%w: host info: %v", errs.ErrFieldUnavailable, err)
	}
	return models.HostInfo{
		HostName: info.Hostname,
		OS:       describeOS(info),
		Kernel:   info.KernelVersion,
	}, nil
}

// describeOS prefers "<platform> <version>", e.g. "ubuntu 24.04".
func describeOS(info *host.InfoStat) string {
	desc := strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	if desc != "" {
		return desc
	}
	if info.OS != "" {
		return info.OS
	}
	return runtime.GOOS
}
