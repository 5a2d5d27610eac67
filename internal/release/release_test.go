package release

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestArtifactNameForArch(t *testing.T) {
	cases := map[string]string{
		"x86_64":  "linux-x64",
		"amd64":   "linux-x64",
		"aarch64": "linux-arm64",
		"arm64":   "linux-arm64",
		"armv7l":  "linux-armv7",
		"armhf":   "linux-armv7",
		"mips":    "",
		"":        "",
	}
	for in, want := range cases {
		if got := ArtifactNameForArch(in); got != want {
			t.Errorf("ArtifactNameForArch(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBinaryNameUnsupportedArchErrors(t *testing.T) {
	if _, err := BinaryName("mips"); err == nil {
		t.Error("expected error for unsupported architecture")
	}
}

func TestBinaryNameFormat(t *testing.T) {
	name, err := BinaryName("x86_64")
	if err != nil {
		t.Fatalf("BinaryName() error: %v", err)
	}
	if name != "termihub-agent-linux-x64" {
		t.Errorf("BinaryName() = %q", name)
	}
}

func TestCheckCompatibleMatch(t *testing.T) {
	if err := CheckCompatible("1.0", "1.0"); err != nil {
		t.Errorf("CheckCompatible() = %v, want nil", err)
	}
}

func TestCheckCompatibleMismatch(t *testing.T) {
	if err := CheckCompatible("1.0", "2.0"); err == nil {
		t.Error("expected error for protocol version mismatch")
	}
}

func TestCheckCompatibleEmptyAgentVersion(t *testing.T) {
	if err := CheckCompatible("", "1.0"); err == nil {
		t.Error("expected error when agent reports no protocol version")
	}
}

func TestCacheDirEndsWithTermihub(t *testing.T) {
	dir := CacheDir()
	want := filepath.Join("termihub", "agent-binaries")
	if !strings.HasSuffix(dir, want) {
		t.Errorf("CacheDir() = %q, want a path ending in %q", dir, want)
	}
}

func TestCachedBinaryPathStructure(t *testing.T) {
	path := CachedBinaryPath("0.1.0", "linux-x64")
	if !strings.Contains(path, "0.1.0") {
		t.Errorf("CachedBinaryPath() = %q, want it to contain the version", path)
	}
	if !strings.HasSuffix(path, "termihub-agent-linux-x64") {
		t.Errorf("CachedBinaryPath() = %q, want it to end with the binary name", path)
	}
}

func TestFindCachedBinaryMissing(t *testing.T) {
	if _, ok := FindCachedBinary("99.99.99", "linux-x64"); ok {
		t.Error("expected FindCachedBinary to report false for a version never cached")
	}
}
