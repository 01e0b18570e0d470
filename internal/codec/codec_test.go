package codec

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/The-Promised-Neverland/kiro/internal/errs"
	"github.com/The-Promised-Neverland/kiro/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() models.MetricsSnapshot {
	return models.MetricsSnapshot{
		OS:          "NixOS 24.05",
		Kernel:      "6.8.0-48-generic",
		HostName:    "timeline",
		LocalIP:     "192.168.1.20",
		Uptime:      3600*24*3 + 3600*5 + 600,
		UsedMemory:  6_442_450_944,
		FreeMemory:  10_737_418_240,
		TotalMemory: 17_179_869_184,
		CPUUsage:    12.345678901234,
	}
}

func TestRoundTrip(t *testing.T) {
	snapshots := []models.MetricsSnapshot{
		sampleSnapshot(),
		{},
		{OS: errs.Unknown, Kernel: errs.Unknown, HostName: errs.Unknown, LocalIP: errs.Unknown},
		{Uptime: math.MaxUint64, UsedMemory: math.MaxUint64, FreeMemory: 1, TotalMemory: math.MaxUint64, CPUUsage: 100},
		{HostName: "ünïcødé \"quoted\"", CPUUsage: 0.1 + 0.2},
	}
	for _, s := range snapshots {
		data, err := Encode(s)
		require.NoError(t, err)
		res := Decode(data)
		require.True(t, res.OK(), "decode failed: %v", res.Err)
		assert.Equal(t, s, res.Snapshot)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a, err := Encode(sampleSnapshot())
	require.NoError(t, err)
	b, err := Encode(sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeUsesFieldNames(t *testing.T) {
	data, err := Encode(sampleSnapshot())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{"os", "kernel", "host_name", "local_ip", "uptime", "used_memory", "free_memory", "total_memory", "cpu_usage"} {
		assert.Contains(t, m, key)
	}
	assert.Len(t, m, 9)
}

func TestEncodeRejectsNonFiniteCPU(t *testing.T) {
	s := sampleSnapshot()
	s.CPUUsage = math.NaN()
	_, err := Encode(s)
	assert.Error(t, err)
}

func TestDecodeIgnoresFieldOrderAndUnknownKeys(t *testing.T) {
	msg := `{"cpu_usage":5.5,"total_memory":100,"free_memory":60,"used_memory":40,"uptime":7,
		"local_ip":"10.0.0.1","host_name":"h","kernel":"k","os":"o","extra":"ignored"}`
	res := Decode([]byte(msg))
	require.True(t, res.OK(), "decode failed: %v", res.Err)
	assert.Equal(t, models.MetricsSnapshot{
		OS: "o", Kernel: "k", HostName: "h", LocalIP: "10.0.0.1",
		Uptime: 7, UsedMemory: 40, FreeMemory: 60, TotalMemory: 100, CPUUsage: 5.5,
	}, res.Snapshot)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not json", "\x00\x01garbage"},
		{"array", "[1,2,3]"},
		{"missing fields", `{"os":"linux"}`},
		{"wrong type", `{"os":1,"kernel":"k","host_name":"h","local_ip":"i","uptime":1,"used_memory":1,"free_memory":1,"total_memory":1,"cpu_usage":1}`},
		{"negative memory", `{"os":"o","kernel":"k","host_name":"h","local_ip":"i","uptime":1,"used_memory":-1,"free_memory":1,"total_memory":1,"cpu_usage":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Decode([]byte(tt.in))
			assert.False(t, res.OK())
			assert.True(t, errors.Is(res.Err, errs.ErrDecode))
		})
	}
}
