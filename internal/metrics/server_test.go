package metrics

import (
	"context"
	"testing"
)

func TestValidateAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "loopback", addr: "127.0.0.1:8080"},
		{name: "wildcard", addr: "0.0.0.0:9090"},
		{name: "ipv6 wildcard", addr: "[::]:9090"},
		{name: "localhost", addr: "localhost:8080"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: "127.0.0.1", wantErr: true},
		{name: "port only", addr: ":8080"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := validateAddress(tc.addr)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %q", tc.addr)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected %q to validate, got %v", tc.addr, err)
			}
		})
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	t.Parallel()

	server := NewServer("127.0.0.1:0")
	if server == nil {
		t.Fatalf("expected server instance")
	}
	if err := server.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected clean shutdown of an unstarted server, got %v", err)
	}
}
