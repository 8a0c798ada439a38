package system

import (
	"context"
	"errors"
	"log/slog"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// memPerRender is a rough peak footprint of one manim render (python, cairo
// and the encoder together).
const memPerRender = 2 << 30

// InitResourceLimits raises the open-file limit; every child holds pipes.
func InitResourceLimits(logger *slog.Logger) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		logger.Warn("read open file limit", "error", err)
		return
	}

	want := uint64(2048)
	if want > rLimit.Max {
		want = rLimit.Max
	}
	if rLimit.Cur >= want {
		return
	}
	rLimit.Cur = want

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		logger.Warn("raise open file limit", "error", err)
		return
	}
	logger.Debug("open file limit raised", "limit", rLimit.Cur)
}

// HostProfile is the subset of host facts the batch renderer cares about.
type HostProfile struct {
	Platform      string
	Arch          string
	PhysicalCores int
	LogicalCores  int
	TotalMemory   uint64
	AvailMemory   uint64
}

// Profile collects host facts. Fields that cannot be read stay zero; the
// first error encountered is returned alongside the partial profile.
func Profile(ctx context.Context) (HostProfile, error) {
	var p HostProfile
	var errs []error

	if info, err := host.InfoWithContext(ctx); err == nil {
		p.Platform = info.Platform + " " + info.PlatformVersion
		p.Arch = info.KernelArch
	} else {
		errs = append(errs, err)
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		p.PhysicalCores = n
	} else {
		errs = append(errs, err)
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		p.LogicalCores = n
	} else {
		errs = append(errs, err)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		p.TotalMemory = vm.Total
		p.AvailMemory = vm.Available
	} else {
		errs = append(errs, err)
	}
	return p, errors.Join(errs...)
}

// SuggestWorkers returns how many renders the host can run side by side.
// Manim already spreads one render over several threads, so only half the
// physical cores are counted.
func SuggestWorkers(p HostProfile) int {
	n := p.PhysicalCores / 2
	if n == 0 {
		n = p.LogicalCores / 2
	}
	if p.AvailMemory > 0 {
		if byMem := int(p.AvailMemory / memPerRender); byMem < n {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

// KillTree kills pid and every process it spawned, children first.
func KillTree(pid int) error {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	killDescendants(proc)
	return proc.Kill()
}

func killDescendants(proc *process.Process) {
	children, err := proc.Children()
	if err != nil {
		return
	}
	for _, c := range children {
		killDescendants(c)
		_ = c.Kill()
	}
}
