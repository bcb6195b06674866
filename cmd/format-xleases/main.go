// Command format-xleases formats a shared-storage lease index: it writes
// a fresh metadata block and a fully-free record index to the index slot
// at <path>, lockspace id <sd_id>.
//
// Usage:
//
//	format-xleases [flags] <sd_id> <path>
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/calvinalkan/xlease/internal/leases"
	"github.com/calvinalkan/xlease/internal/lockmgr"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("format-xleases", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	blockSize := flagSet.Int("block-size", 512, "index block size in bytes (512 or 4096)")

	if err := flagSet.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)

		return 2
	}

	remaining := flagSet.Args()
	if len(remaining) != 2 {
		fmt.Fprintln(errOut, "usage: format-xleases [flags] <sd_id> <path>")

		return 2
	}

	lockspace, path := remaining[0], remaining[1]

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(errOut, "error: setting up logger:", err)

		return 1
	}
	defer func() { _ = log.Sync() }()

	// The real cluster lock manager is an external collaborator this
	// module only consumes through the lockmgr.Manager interface; this CLI
	// wires a local, single-host stand-in so it runs standalone. A
	// deployment with a real cluster lock manager injects that
	// implementation here instead.
	mgr := lockmgr.NewFake()

	vol, err := leases.Format(path, time.Now().Unix(), leases.Options{
		BlockSize: *blockSize,
		Lockspace: lockspace,
		Manager:   mgr,
		Logger:    log.Sugar(),
	})
	if err != nil {
		fmt.Fprintln(errOut, "error: format failed:", err)

		return 1
	}
	defer vol.Close()

	fmt.Fprintf(out, "formatted lease index for lockspace %s at %s\n", lockspace, path)

	return 0
}
