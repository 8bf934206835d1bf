// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/drphrozen/snowplow-rdb-loader/cmd"
	"github.com/drphrozen/snowplow-rdb-loader/pkg/loaderrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	os.Exit(exitCode(err))
}

// exitCode maps the loaderrors taxonomy to a process exit code:
// 0 graceful, 1 runtime error, 2 configuration error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, loaderrors.Shutdown) {
		return 0
	}
	var cfgErr loaderrors.ConfigurationError
	if errors.As(err, &cfgErr) {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
