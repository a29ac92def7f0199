// main executable.
package main

import (
	"os"

	"github.com/fpvtools/osdrender/internal/core"
)

func main() {
	s, ok := core.New(os.Args[1:])
	if !ok {
		os.Exit(1)
	}

	if !s.Wait() {
		s.Close()
		os.Exit(1)
	}
	s.Close()
}
