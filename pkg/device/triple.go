package device

import "runtime"

// HostTriple is the derived (arch, OS) identity of the machine running
// the plugin host. Supported matrix per spec §4.6:
// {x86_64,aarch64} x {linux,macos,windows}; anything else falls back
// to "unknown".
const (
	archX86_64  = "x86_64"
	archAArch64 = "aarch64"

	osLinux   = "linux"
	osMacOS   = "macos"
	osWindows = "windows"

	unknown = "unknown"
)

// HostTriple formats as "<arch>-<os>", two segments. Since "*" in a
// target pattern stands for exactly one segment and pattern and triple
// must have the same number of segments, only two-segment patterns such
// as "x86_64-*" match it; "x86_64-*-*" does not.
func HostTriple() string {
	arch := hostArch()
	os := hostOS()
	if arch == unknown || os == unknown {
		return unknown
	}
	return arch + "-" + os
}

func hostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return archX86_64
	case "arm64":
		return archAArch64
	default:
		return unknown
	}
}

func hostOS() string {
	switch runtime.GOOS {
	case "linux":
		return osLinux
	case "darwin":
		return osMacOS
	case "windows":
		return osWindows
	default:
		return unknown
	}
}
