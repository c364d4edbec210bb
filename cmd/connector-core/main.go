// Command connector-core runs an extractor connector: a worker that
// bridges a data-management host and user-supplied extraction logic via
// one of three transports (broker, batch, local).
package main

import (
	"fmt"
	"io"
	"os"

	golog "github.com/ipfs/go-log"
	"github.com/qri-io/ioes"
)

var log = golog.Logger("cmd")

func main() {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				fmt.Fprintln(os.Stderr, err.Error())
			} else {
				fmt.Fprintln(os.Stderr, r)
			}
			os.Exit(1)
		}
	}()

	root := newRootCommand(ioes.NewStdIOStreams())
	root.SilenceUsage = true
	root.SilenceErrors = true
	if err := root.Execute(); err != nil {
		errExit(os.Stderr, err)
	}
}

// errExit writes an error to w, logs it at debug level, and exits 1.
func errExit(w io.Writer, err error) {
	log.Debug(err.Error())
	fmt.Fprintln(w, err.Error())
	os.Exit(1)
}
