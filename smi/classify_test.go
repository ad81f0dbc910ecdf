package smi

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want Response
	}{
		{"gpu name", "NVIDIA GeForce RTX 3080\n", ResponseOK},
		{"two gpus", "NVIDIA L4\nNVIDIA L4\n", ResponseOK},
		{"empty", "", ResponseEmpty},
		{"whitespace", " \n\t\n", ResponseEmpty},
		{"no devices", "No devices were found\n", ResponseNoDevices},
		{"no devices lowercase", "no devices were found", ResponseNoDevices},
		{"driver", "NVIDIA-SMI has failed because it couldn't communicate with the NVIDIA driver. Make sure that the latest NVIDIA driver is installed and running.\n", ResponseDriverUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify([]byte(tt.out)); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.out, got, tt.want)
			}
		})
	}
}
