// Package common provides shared constants, sentinel errors, and logging
// used throughout the VPN engine.
//
// This package is the foundation for cross-cutting concerns:
//
//   - Constants: timeouts, file names, and protocol overhead values
//   - Errors: sentinel errors for consistent error handling across packages
//   - Logger: leveled logging with file output and size-based rotation
//
// # Usage
//
//	import "vpnengine/common"
//
//	common.LogInfo("Connecting to %s", locationName)
//
//	if errors.Is(err, common.ErrNotInitialized) {
//	    // engine was used before Init finished
//	}
package common
