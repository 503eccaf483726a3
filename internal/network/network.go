// Package network holds listener helpers shared by the HTTP front end.
package network

import (
	"context"
	"fmt"
	"net"
)

// Listen binds a TCP listener on addr using ListenConfig.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := ListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}
