// Command rebuild-xleases reconstructs a lease index's record mapping from
// the external lock manager's ground truth, discarding whatever is
// currently on disk at <path>.
//
// Usage:
//
//	rebuild-xleases [flags] <sd_id> <path>
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/xlease/internal/leases"
	"github.com/calvinalkan/xlease/internal/lockmgr"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("rebuild-xleases", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	blockSize := flagSet.Int("block-size", 512, "index block size in bytes (512 or 4096)")

	if err := flagSet.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 2
	}

	remaining := flagSet.Args()
	if len(remaining) != 2 {
		fmt.Fprintln(errOut, "usage: rebuild-xleases [flags] <sd_id> <path>")

		return 2
	}

	lockspace, path := remaining[0], remaining[1]

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(errOut, "error: setting up logger:", err)

		return 1
	}
	defer func() { _ = log.Sync() }()

	mgr := lockmgr.NewFake()

	vol, err := leases.Open(path, leases.Options{
		BlockSize: *blockSize,
		Lockspace: lockspace,
		Manager:   mgr,
		Logger:    log.Sugar(),
	})
	if err != nil {
		fmt.Fprintln(errOut, "error: opening volume:", err)

		return 1
	}
	defer vol.Close()

	if err := vol.Rebuild(context.Background()); err != nil {
		fmt.Fprintln(errOut, "error: rebuild failed:", err)

		return 1
	}

	fmt.Fprintf(out, "rebuilt lease index for lockspace %s at %s\n", lockspace, path)

	return 0
}
