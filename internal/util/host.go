package util

import (
	"context"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// HostIdentity is what the settings screen reports about the device.
type HostIdentity struct {
	Hostname string
	IP       string
}

// LookupHost returns the hostname and the first non-loopback IPv4 address.
// Lookups that fail leave the field as "unknown".
func LookupHost(ctx context.Context) HostIdentity {
	id := HostIdentity{Hostname: "unknown", IP: "unknown"}

	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		id.Hostname = info.Hostname
	} else if name, err := os.Hostname(); err == nil {
		id.Hostname = name
	}

	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return id
	}
	if ip := firstIPv4(ifaces); ip != "" {
		id.IP = ip
	}
	return id
}

func firstIPv4(ifaces psnet.InterfaceStatList) string {
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") || !slices.Contains(iface.Flags, "up") {
			continue
		}
		for _, a := range iface.Addrs {
			addr, _, _ := strings.Cut(a.Addr, "/")
			if strings.Count(addr, ".") == 3 && !strings.HasPrefix(addr, "127.") {
				return addr
			}
		}
	}
	return ""
}

// HostLoad is a point-in-time reading of CPU and memory use, in percent.
type HostLoad struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// SampleLoad reads current CPU and memory utilisation. Unavailable figures
// are reported as zero.
func SampleLoad(ctx context.Context) HostLoad {
	var load HostLoad
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		load.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		load.MemPercent = vm.UsedPercent
	}
	return load
}

// IsConnected reports whether a HEAD request to url gets any response
// within timeout.
func IsConnected(ctx context.Context, url string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
