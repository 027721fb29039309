//go:build !wasip1

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "resynth-program must be built for WebAssembly:")
	fmt.Fprintln(os.Stderr, "  GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o program.wasm ./cmd/resynth-program")
	fmt.Fprintln(os.Stderr, "or use the builtin program with: resynth -program builtin:piano")
	os.Exit(2)
}
