// Command corvid runs the chess engine as a text-line protocol process on
// standard input/output.
package main

import (
	"github.com/corvidchess/corvid/internal/engine"
	"github.com/corvidchess/corvid/internal/uci"
	_ "github.com/corvidchess/corvid/internal/xlog"
)

const defaultHashMB = 64

func main() {
	eng := engine.NewEngine(defaultHashMB)
	protocol := uci.New(eng)
	protocol.Run()
}
