// Package codec turns snapshots into wire messages and back.
//
// A message is a JSON object keyed by field name. Encoding a given
// snapshot always yields the same bytes, so equal host state means equal
// messages.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/models"
)

// wireSnapshot mirrors models.MetricsSnapshot with pointer fields so that
// missing keys can be told apart from zero values.
type wireSnapshot struct {
	OS          *string  `json:"os"`
	Kernel      *string  `json:"kernel"`
	HostName    *string  `json:"host_name"`
	LocalIP     *string  `json:"local_ip"`
	Uptime      *uint64  `json:"uptime"`
	UsedMemory  *uint64  `json:"used_memory"`
	FreeMemory  *uint64  `json:"free_memory"`
	TotalMemory *uint64  `json:"total_memory"`
	CPUUsage    *float64 `json:"cpu_usage"`
}

// Encode serialises all nine snapshot fields.
func Encode(s models.MetricsSnapshot) ([]byte, error) {
	if math.IsNaN(s.CPUUsage) || math.IsInf(s.CPUUsage, 0) {
		return nil, fmt.Errorf("encode snapshot: cpu_usage is not finite")
	}
	return json.Marshal(s)
}

// DecodeResult is either a snapshot or the reason decoding failed.
type DecodeResult struct {
	Snapshot models.MetricsSnapshot
	Err      error
}

func (r DecodeResult) OK() bool {
	return r.Err == nil
}

func failed(format string, args ...any) DecodeResult {
	return DecodeResult{Err: fmt.Errorf("%w: %s", errs.ErrDecode, fmt.Sprintf(format, args...))}
}

// Decode parses one wire message. Unknown keys are ignored; every one of
// the nine known keys must be present.
func Decode(data []byte) DecodeResult {
	if len(bytes.TrimSpace(data)) == 0 {
		return failed("empty message")
	}
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return failed("%v", err)
	}
	missing := missingFields(&w)
	if len(missing) > 0 {
		return failed("missing fields %v", missing)
	}
	return DecodeResult{Snapshot: models.MetricsSnapshot{
		OS:          *w.OS,
		Kernel:      *w.Kernel,
		HostName:    *w.HostName,
		LocalIP:     *w.LocalIP,
		Uptime:      *w.Uptime,
		UsedMemory:  *w.UsedMemory,
		FreeMemory:  *w.FreeMemory,
		TotalMemory: *w.TotalMemory,
		CPUUsage:    *w.CPUUsage,
	}}
}

func missingFields(w *wireSnapshot) []string {
	var missing []string
	check := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	check("os", w.OS != nil)
	check("kernel", w.Kernel != nil)
	check("host_name", w.HostName != nil)
	check("local_ip", w.LocalIP != nil)
	check("uptime", w.Uptime != nil)
	check("used_memory", w.UsedMemory != nil)
	check("free_memory", w.FreeMemory != nil)
	check("total_memory", w.TotalMemory != nil)
	check("cpu_usage", w.CPUUsage != nil)
	return missing
}
