// Package compileinfo reports how a golimma binary was built, so that a table
// of results can be traced back to the code and numerical libraries that
// produced it.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
)

// Module whose version is reported alongside the build, since it supplies the
// linear algebra and distribution functions.
const numericsModule = "gonum.org/v1/gonum"

type CompileInfo struct {
	Package    string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
	Numerics   string
}

func (c CompileInfo) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "This %s binary", orUnknown(c.Package))
	if c.Version != "" && c.Version != "(devel)" {
		fmt.Fprintf(&b, " (%s)", c.Version)
	}
	fmt.Fprintf(&b, " was built with %s", orUnknown(c.GoVersion))
	if c.Commit != "" {
		fmt.Fprintf(&b, " at commit %s (%s)", c.Commit, orUnknown(c.CommitTime))
	}
	b.WriteString(".")
	if c.Modified {
		b.WriteString(" Files in the repo were modified after that commit.")
	}
	if c.Numerics != "" {
		fmt.Fprintf(&b, " Numerics: %s %s.", numericsModule, c.Numerics)
	}

	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Get reads the build information embedded in the running binary.
func Get() CompileInfo {
	z, ok := debug.ReadBuildInfo()
	if !ok {
		return CompileInfo{}
	}

	return FromBuildInfo(z)
}

func FromBuildInfo(z *debug.BuildInfo) CompileInfo {
	out := CompileInfo{
		GoVersion: z.GoVersion,
		Package:   z.Path,
		Version:   z.Main.Version,
	}

	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	for _, dep := range z.Deps {
		if dep.Path != numericsModule {
			continue
		}
		out.Numerics = dep.Version
		if dep.Replace != nil {
			out.Numerics = dep.Replace.Version + " (replaced)"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintf(os.Stderr, "%s\n", Get())
}
