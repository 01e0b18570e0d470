package service

import (
	"context"
	"math"
	"time"

	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/localip"
	"github.com/The-Promised-Neverland/kiro/internal/models"
	"github.com/The-Promised-Neverland/kiro/pkg/logger"
	gocache "github.com/patrickmn/go-cache"
)

const (
	factsKey        = "facts"
	defaultFactsTTL = time.Minute
	resolveTimeout  = 5 * time.Second
)

type facts struct {
	info    models.HostInfo
	localIP string
}

// Sampler builds one snapshot per call. Identity facts change rarely and
// some are expensive to resolve, so they are cached for factsTTL and
// shared by every stream; the volatile fields are read on every call.
// cpu_usage is measured since the sampler's previous call, so each stream
// samples through its own ForStream copy.
type Sampler struct {
	provider HostProvider
	resolver localip.Resolver
	facts    *gocache.Cache
	factsTTL time.Duration
	cpu      *cpuBaseline
}

func NewSampler(provider HostProvider, resolver localip.Resolver, factsTTL time.Duration) *Sampler {
	if factsTTL <= 0 {
		factsTTL = defaultFactsTTL
	}
	return &Sampler{
		provider: provider,
		resolver: resolver,
		facts:    gocache.New(factsTTL, 2*factsTTL),
		factsTTL: factsTTL,
		cpu:      &cpuBaseline{},
	}
}

// ForStream returns a sampler sharing this one's provider and fact cache
// but with its own CPU baseline.
func (s *Sampler) ForStream() *Sampler {
	return &Sampler{
		provider: s.provider,
		resolver: s.resolver,
		facts:    s.facts,
		factsTTL: s.factsTTL,
		cpu:      &cpuBaseline{},
	}
}

// Sample never fails: fields the host cannot provide are reported as
// errs.Unknown (strings) or 0 (numbers).
func (s *Sampler) Sample(ctx context.Context) models.MetricsSnapshot {
	f := s.loadFacts(ctx)
	snap := models.MetricsSnapshot{
		OS:       f.info.OS,
		Kernel:   f.info.Kernel,
		HostName: f.info.HostName,
		LocalIP:  f.localIP,
	}

	if times, err := s.provider.CPUTimes(); err != nil {
		logger.Log.Warn("CPU usage unavailable", "err", err)
	} else if pct := s.cpu.update(times); !math.IsNaN(pct) && !math.IsInf(pct, 0) {
		snap.CPUUsage = clampPercent(pct)
	}

	if used, free, total, err := s.provider.Memory(); err != nil {
		logger.Log.Warn("Memory usage unavailable", "err", err)
	} else {
		snap.UsedMemory, snap.FreeMemory, snap.TotalMemory = used, free, total
	}

	if uptime, err := s.provider.Uptime(); err != nil {
		logger.Log.Warn("Uptime unavailable", "err", err)
	} else {
		snap.Uptime = uptime
	}
	return snap
}

func (s *Sampler) loadFacts(ctx context.Context) facts {
	if cached, ok := s.facts.Get(factsKey); ok {
		return cached.(facts)
	}
	f := facts{localIP: errs.Unknown}
	info, err := s.provider.HostInfo()
	if err != nil {
		logger.Log.Warn("Host info unavailable", "err", err)
	}
	f.info = models.HostInfo{
		HostName: orUnknown(info.HostName),
		OS:       orUnknown(info.OS),
		Kernel:   orUnknown(info.Kernel),
	}
	if s.resolver != nil {
		rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
		ip, err := s.resolver.Resolve(rctx)
		cancel()
		if err != nil {
			logger.Log.Error("failed to get local IP", "err", err)
		} else {
			f.localIP = orUnknown(ip)
		}
	}
	logger.Log.Debug("Host facts refreshed", "host_name", f.info.HostName, "local_ip", f.localIP)
	s.facts.Set(factsKey, f, s.factsTTL)
	return f
}

func orUnknown(s string) string {
	if s == "" {
		return errs.Unknown
	}
	return s
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
