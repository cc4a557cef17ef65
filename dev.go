package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/nf/c8/chip8"
	"github.com/nf/c8/cosmac"
)

// devMode runs the program in src, rebuilding and restarting it each time
// src changes. With debug set it also runs the debugger in the terminal.
func devMode(fe cosmac.Frontend, debug bool, src string, hz int, q chip8.Quirks) error {
	src = filepath.Clean(src)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(src)); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp("", "c8-dev-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	var (
		buildOut io.Writer = os.Stderr
		dbg      *debugger
		state    cosmac.StateFunc
	)
	if debug {
		dbg = newDebugger()
		buildOut = dbg.log
		state = dbg.StateFunc
	}
	runner := cosmac.NewRunner(hz, true, state)
	if dbg != nil {
		dbg.run = runner
		log.SetPrefix("")
		log.SetOutput(dbg.log)
		go func() {
			if err := dbg.Run(); err != nil {
				log.Fatalf("debug: %v", err)
			}
			log.SetOutput(os.Stderr)
			log.SetPrefix("c8: ")
			runner.Debug("exit", 0)
		}()
	}

	mCh := make(chan *chip8.Machine)
	go func() {
		started := false
		run := time.After(1 * time.Millisecond)
		for {
			select {
			case <-run:
				log.Printf("dev: build %s", filepath.Base(src))
				rom, err := loadROM(buildOut, src, tmp)
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				m, err := newMachine(rom, q)
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				if dbg != nil {
					syms, err := readSymbols(src + ".sym")
					if err != nil {
						log.Printf("dev: reading symbols: %v", err)
					}
					dbg.setSymbols(syms)
				}
				if !started {
					log.Printf("dev: start")
					mCh <- m
					started = true
				} else {
					log.Printf("dev: reset")
					runner.Swap(m)
				}
			case ev := <-watcher.Event:
				if ev.Name == src && !ev.IsAttrib() {
					run = time.After(100 * time.Millisecond)
				}
			case err := <-watcher.Error:
				log.Printf("dev: watcher: %v", err)
			}
		}
	}()
	err = runner.Run(<-mCh, fe)
	if dbg != nil {
		dbg.app.Stop()
	}
	return err
}

// loadROM returns the program in src, building it with octo into dir if it
// is Octo source.
func loadROM(out io.Writer, src, dir string) ([]byte, error) {
	if filepath.Ext(src) != ".8o" {
		return os.ReadFile(src)
	}
	return build(out, src, filepath.Join(dir, filepath.Base(src)+".ch8"))
}

func build(out io.Writer, src, romFile string) ([]byte, error) {
	cmd := exec.Command("octo", src, romFile)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("octo: %v", err)
	}
	return os.ReadFile(romFile)
}

func newMachine(rom []byte, q chip8.Quirks) (*chip8.Machine, error) {
	m, err := chip8.New(rom)
	if err != nil {
		return nil, err
	}
	m.Quirks = q
	return m, nil
}
