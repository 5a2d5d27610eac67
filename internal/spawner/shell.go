package spawner

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// gitBashPaths are the well-known Git Bash installation locations on
// Windows, checked in order.
var gitBashPaths = []string{
	`C:\Program Files\Git\bin\bash.exe`,
	`C:\Program Files (x86)\Git\bin\bash.exe`,
}

// ResolveShell maps a shell name from settings (e.g. "bash", "zsh",
// "wsl:Ubuntu") to the program and arguments that actually launch it.
//
// On Windows, a bare "bash" is intercepted by the WSL launcher rather than
// running a native shell, so it resolves to Git Bash instead; WSL distros
// are requested explicitly via the "wsl:<distro>" form, which resolves to
// the WSL launcher with "-d <distro>" regardless of platform (Unix hosts
// simply won't have wsl.exe on PATH, and connecting will fail at spawn
// time rather than silently misrouting).
func ResolveShell(name string) (program string, args []string) {
	if distro, ok := strings.CutPrefix(name, "wsl:"); ok {
		return resolveWSL(distro)
	}

	switch name {
	case "", "sh":
		return "sh", nil
	case "zsh":
		return "zsh", []string{"--login"}
	case "bash":
		return resolveBash()
	case "cmd":
		return "cmd.exe", nil
	case "powershell":
		return resolvePowerShell()
	case "gitbash":
		return resolveGitBash()
	default:
		return name, nil
	}
}

func resolveBash() (string, []string) {
	if runtime.GOOS == "windows" {
		return resolveGitBash()
	}
	return "bash", []string{"--login"}
}

func resolveGitBash() (string, []string) {
	if runtime.GOOS == "windows" {
		for _, p := range gitBashPaths {
			if _, err := os.Stat(p); err == nil {
				return p, []string{"--login"}
			}
		}
	}
	return "bash.exe", []string{"--login"}
}

func resolvePowerShell() (string, []string) {
	if runtime.GOOS == "windows" {
		if root := os.Getenv("SYSTEMROOT"); root != "" {
			full := filepath.Join(root, "System32", "WindowsPowerShell", "v1.0", "powershell.exe")
			if _, err := os.Stat(full); err == nil {
				return full, []string{"-NoLogo"}
			}
		}
	}
	return "powershell.exe", []string{"-NoLogo"}
}

func resolveWSL(distro string) (string, []string) {
	wslPath := "wsl.exe"
	if runtime.GOOS == "windows" {
		if root := os.Getenv("SYSTEMROOT"); root != "" {
			full := filepath.Join(root, "System32", "wsl.exe")
			if _, err := os.Stat(full); err == nil {
				wslPath = full
			}
		}
	}
	return wslPath, []string{"-d", distro}
}
