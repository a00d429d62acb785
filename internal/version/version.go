// ABOUTME: Version information for the host receiver
// ABOUTME: Version can be overridden at build time with -ldflags
package version

import (
	"fmt"
	"runtime"
)

// Version is set by the build, e.g. -ldflags "-X .../internal/version.Version=1.2.0"
var Version = "0.1.0"

const (
	// Product is the human readable product name
	Product = "AndroidMic Host"
	// Manufacturer is shown in discovery records
	Manufacturer = "AndroidMic"
)

// String returns the full version line printed by the version command
func String() string {
	return fmt.Sprintf("%s %s (%s %s/%s)", Product, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
