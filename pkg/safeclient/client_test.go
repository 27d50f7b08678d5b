package safeclient

import (
	"net"
	"testing"
)

func TestIsForbiddenIP(t *testing.T) {
	tests := []struct {
		ip        string
		forbidden bool
	}{
		{"10.0.0.5", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"127.0.0.1", true},
		{"169.254.169.254", true},
		{"100.64.0.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"::ffff:192.168.0.1", true},
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"2606:4700:4700::1111", false},
	}

	for _, tt := range tests {
		if got := IsForbiddenIP(net.ParseIP(tt.ip)); got != tt.forbidden {
			t.Errorf("IsForbiddenIP(%s) = %v, want %v", tt.ip, got, tt.forbidden)
		}
	}
}

func TestNilIPForbidden(t *testing.T) {
	if !IsForbiddenIP(nil) {
		t.Error("nil IP should be forbidden")
	}
}
