package report

import (
	"fmt"
	"io"

	"github.com/aquasecurity/table"

	"github.com/ivlev/scenebatch/internal/render"
	"github.com/ivlev/scenebatch/internal/system"
)

// Environment is what -check collects about the host.
type Environment struct {
	Renderer        string
	RendererPath    string
	RendererVersion string
	RendererErr     error
	Tools           []render.Tool
	Host            system.HostProfile
	HostErr         error
	SuggestedJobs   int
}

// PrintEnvironment prints the -check diagnostics.
func PrintEnvironment(w io.Writer, env Environment) {
	if env.RendererErr != nil {
		fmt.Fprintf(w, "[-] renderer: %v\n", env.RendererErr)
	} else {
		fmt.Fprintf(w, "[+] renderer: %s (%s)\n", env.RendererPath, env.RendererVersion)
	}

	tbl := table.New(w)
	tbl.SetBorders(false)
	tbl.SetHeaders("Tool", "Status", "Used for")
	for _, tool := range env.Tools {
		status := "missing"
		if tool.Found {
			status = tool.Path
		}
		tbl.AddRow(tool.Name, status, tool.Purpose)
	}
	tbl.Render()
	fmt.Fprintln(w)

	if env.HostErr != nil {
		fmt.Fprintf(w, "[!] host profile incomplete: %v\n", env.HostErr)
	}
	h := env.Host
	fmt.Fprintf(w, "[*] Host: %s/%s | Cores: %d physical, %d logical | Memory: %.1f GiB free of %.1f GiB\n",
		h.Platform, h.Arch, h.PhysicalCores, h.LogicalCores, gib(h.AvailMemory), gib(h.TotalMemory))
	fmt.Fprintf(w, "[*] Suggested -workers: %d\n", env.SuggestedJobs)
}

func gib(b uint64) float64 {
	return float64(b) / (1 << 30)
}
