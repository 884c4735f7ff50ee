// Command gones runs the NES emulator core against a ROM file:
//
//	gones [-debug] rom.nes
package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/bdwalton/gones/console"
	"github.com/bdwalton/gones/mappers"
	"github.com/bdwalton/gones/nesrom"
	"github.com/hajimehoshi/ebiten/v2"
)

var debug = flag.Bool("debug", false, "Run the interactive debug console instead of the ebiten display loop.")

func main() {
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() != 1 {
		glog.Exitf("usage: gones [-debug] rom.nes")
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		glog.Exitf("opening ROM: %v", err)
	}
	defer f.Close()

	rom, err := nesrom.New(f)
	if err != nil {
		glog.Exitf("loading ROM: %v", err)
	}

	m, err := mappers.Get(rom)
	if err != nil {
		glog.Exitf("unsupported cartridge: %v", err)
	}

	glog.Infof("loaded %s (%s, %d PRG blocks, %d CHR blocks)", flag.Arg(0), m.Name(), rom.NumPrgBlocks(), rom.NumChrBlocks())

	bus := console.New(m)

	if *debug {
		bus.BIOS(context.Background())
		return
	}

	if err := ebiten.RunGame(bus); err != nil {
		glog.Exitf("ebiten: %v", err)
	}
}
