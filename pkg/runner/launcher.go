package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// ReportFileName is the jest JSON report written into the working directory.
const ReportFileName = "report.json"

// Launcher identifies how the configured runner command hands flags to jest.
type Launcher string

const (
	// LauncherNPM runs jest through an npm script (npm test, npm run cover).
	LauncherNPM Launcher = "npm"
	// LauncherNPX runs jest through npx.
	LauncherNPX Launcher = "npx"
	// LauncherPNPM runs jest through a pnpm script.
	LauncherPNPM Launcher = "pnpm"
	// LauncherYarn runs jest through a yarn script.
	LauncherYarn Launcher = "yarn"
	// LauncherDirect runs the jest binary itself.
	LauncherDirect Launcher = "direct"
)

// DefaultLauncher matches DefaultCommand.
const DefaultLauncher = LauncherNPX

// DefaultCommand is used when no runner command is configured.
const DefaultCommand = "npx jest"

// separator is the token npm-style launchers use to stop parsing their own flags.
const separator = "--"

type argBuilder func(command, flags []string) []string

func withSeparator(command, flags []string) []string {
	args := make([]string, 0, len(command)+1+len(flags))
	args = append(args, command...)
	args = append(args, separator)
	return append(args, flags...)
}

func appendDirect(command, flags []string) []string {
	args := make([]string, 0, len(command)+len(flags))
	args = append(args, command...)
	return append(args, flags...)
}

var builders = map[Launcher]argBuilder{
	LauncherNPM:    withSeparator,
	LauncherNPX:    withSeparator,
	LauncherPNPM:   appendDirect,
	LauncherYarn:   appendDirect,
	LauncherDirect: appendDirect,
}

// ParseLauncher validates a launcher name. An empty name selects DefaultLauncher.
func ParseLauncher(name string) (Launcher, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultLauncher, nil
	}
	l := Launcher(name)
	if _, ok := builders[l]; !ok {
		return "", fmt.Errorf("unknown launcher %q (want npm, npx, pnpm, yarn or direct)", name)
	}
	return l, nil
}

// UsesSeparator reports whether the launcher puts "--" before the jest flags.
func (l Launcher) UsesSeparator() bool {
	return l == LauncherNPM || l == LauncherNPX
}

// Args appends the jest flags to command the way this launcher expects.
func (l Launcher) Args(command, flags []string) []string {
	build, ok := builders[l]
	if !ok {
		build = appendDirect
	}
	return build(command, flags)
}

// ReportPath returns the absolute report location for a working directory.
func ReportPath(dir string) string {
	return filepath.Join(dir, ReportFileName)
}

// JestFlags requests JSON output and coverage written to reportPath.
func JestFlags(reportPath string) []string {
	return []string{"--json", "--coverage", "--outputFile=" + reportPath}
}

// SplitCommand turns a configured command line into argv using shell word
// rules. Environment references are expanded from the process environment.
func SplitCommand(line string) ([]string, error) {
	fields, err := shell.Fields(line, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse runner command %q: %w", line, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("runner command is empty")
	}
	return fields, nil
}

// BuildInvocation assembles the full jest invocation for dir.
func BuildInvocation(l Launcher, commandLine, dir string) (Invocation, error) {
	if commandLine == "" {
		commandLine = DefaultCommand
	}
	command, err := SplitCommand(commandLine)
	if err != nil {
		return Invocation{}, err
	}
	report := ReportPath(dir)
	return Invocation{
		Dir:        dir,
		Args:       l.Args(command, JestFlags(report)),
		ReportPath: report,
	}, nil
}
