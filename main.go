// Command c8 executes CHIP-8 programs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"

	"github.com/nf/c8/chip8"
	"github.com/nf/c8/cosmac"
)

func main() {
	log.SetPrefix("c8: ")
	log.SetFlags(0)

	var (
		cliFlag      = flag.Bool("cli", false, "run in the terminal instead of a window")
		guiFlag      = flag.String("gui", "shiny", "window back end: shiny or ebiten")
		headlessFlag = flag.Int("headless", 0, "run `n` frames without a front end and print the display")
		hzFlag       = flag.Int("hz", cosmac.DefaultHz, "instructions executed per second")
		scaleFlag    = flag.Int("scale", 10, "window pixels per display pixel")
		devFlag      = flag.Bool("dev", false, "enable developer mode (live re-build and run the program)")
		debugFlag    = flag.Bool("debug", false, "enable debugger (implies -dev)")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")

		q = chip8.DefaultQuirks
	)
	flag.BoolVar(&q.ShiftVx, "quirk.shift", q.ShiftVx, "8xy6 and 8xyE shift Vx in place, ignoring Vy")
	flag.BoolVar(&q.VFReset, "quirk.vfreset", q.VFReset, "8xy1, 8xy2 and 8xy3 clear VF")
	flag.BoolVar(&q.Wrap, "quirk.wrap", q.Wrap, "sprites wrap at the display edges instead of clipping")
	flag.BoolVar(&q.IndexIncrement, "quirk.index", q.IndexIncrement, "Fx55 and Fx65 advance I past the registers")
	flag.BoolVar(&q.JumpVx, "quirk.jump", q.JumpVx, "Bxnn jumps to xnn plus Vx")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <program.ch8 | program.8o>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [flags] <-dev | -debug> <program.8o>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}

	if n := *headlessFlag; n > 0 {
		if err := headless(os.Stdout, flag.Arg(0), n, *hzFlag, q); err != nil {
			log.Fatal(err)
		}
		return
	}

	var fe cosmac.Frontend
	switch {
	case *cliFlag && *debugFlag:
		log.Fatal("the debugger needs the terminal; use a window with -debug")
	case *cliFlag:
		fe = cosmac.NewTerm(cosmac.DefaultTheme)
	case *guiFlag == "shiny":
		fe = cosmac.NewGUI(cosmac.DefaultTheme, *scaleFlag)
	case *guiFlag == "ebiten":
		fe = cosmac.NewEbiten(cosmac.DefaultTheme, *scaleFlag)
	default:
		log.Fatalf("unknown -gui %q", *guiFlag)
	}

	if *devFlag || *debugFlag {
		if err := devMode(fe, *debugFlag, flag.Arg(0), *hzFlag, q); err != nil {
			log.Fatal(err)
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatalf("creating CPU profile file: %v", err)
		}
		pprof.StartCPUProfile(f)
		cpuProfile = f
	}

	err := run(flag.Arg(0), fe, *hzFlag, q)

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
}

func run(src string, fe cosmac.Frontend, hz int, q chip8.Quirks) error {
	m, err := open(src, q)
	if err != nil {
		return err
	}
	return cosmac.NewRunner(hz, false, nil).Run(m, fe)
}

// headless runs frames frames of the program in src and prints the display.
func headless(w io.Writer, src string, frames, hz int, q chip8.Quirks) error {
	m, err := open(src, q)
	if err != nil {
		return err
	}
	if err := cosmac.NewRunner(hz, false, nil).RunFrames(m, frames); err != nil {
		return err
	}
	_, err = fmt.Fprint(w, m.Display.String())
	return err
}

func open(src string, q chip8.Quirks) (*chip8.Machine, error) {
	tmp, err := os.MkdirTemp("", "c8-build-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)
	rom, err := loadROM(os.Stderr, src, tmp)
	if err != nil {
		return nil, err
	}
	return newMachine(rom, q)
}
