// Package version reports the build version of the binary.
package version
