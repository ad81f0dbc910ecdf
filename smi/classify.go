package smi

import (
	"bytes"
	"regexp"
)

// Response is the verdict on the output of a read-only device query.
type Response int

const (
	ResponseOK Response = iota
	// ResponseEmpty: the query printed nothing.
	ResponseEmpty
	// ResponseNoDevices: "No devices were found".
	ResponseNoDevices
	// ResponseDriverUnavailable: "NVIDIA-SMI has failed because it couldn't
	// communicate with the NVIDIA driver" and its variants.
	ResponseDriverUnavailable
)

var (
	noDevicesPattern = regexp.MustCompile(`(?i)no devices were found`)
	driverPattern    = regexp.MustCompile(`(?i)nvidia-smi has failed|couldn't communicate with the nvidia driver`)
)

// Classify sorts device query output into one of the Response classes.
func Classify(out []byte) Response {
	switch {
	case len(bytes.TrimSpace(out)) == 0:
		return ResponseEmpty
	case noDevicesPattern.Match(out):
		return ResponseNoDevices
	case driverPattern.Match(out):
		return ResponseDriverUnavailable
	default:
		return ResponseOK
	}
}

func (r Response) String() string {
	switch r {
	case ResponseOK:
		return "ok"
	case ResponseEmpty:
		return "empty"
	case ResponseNoDevices:
		return "no devices"
	case ResponseDriverUnavailable:
		return "driver unavailable"
	default:
		return "unknown"
	}
}
