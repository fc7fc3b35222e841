// Command microstub runs an ARM image in the emulator and serves it to one
// GDB connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pkg/profile"
	"github.com/spf13/afero"
	"github.com/wnxd/microstub/config"
	"github.com/wnxd/microstub/debugger"
	_ "github.com/wnxd/microstub/debugger/arm"
	"github.com/wnxd/microstub/emulator/arm"
	"github.com/wnxd/microstub/gdb"
	"github.com/wnxd/microstub/loader"
	"github.com/wnxd/microstub/loader/elf"
	"github.com/wnxd/microstub/socket"
)

type flags struct {
	config  string
	listen  string
	image   string
	burst   uint64
	profile string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "TOML config `file`")
	flag.StringVar(&f.listen, "listen", "", "`address` to wait for GDB on (default "+config.DEFAULT_LISTEN+")")
	flag.StringVar(&f.image, "image", "", "ELF `file` to load")
	flag.Uint64Var(&f.burst, "burst", 0, "instructions run between transport polls")
	flag.StringVar(&f.profile, "profile", "", "write a CPU profile into `dir`")
	flag.Parse()
	if f.image == "" && flag.NArg() > 0 {
		f.image = flag.Arg(0)
	}

	if err := run(afero.NewOsFs(), f); err != nil {
		fmt.Fprintln(os.Stderr, "microstub:", err)
		os.Exit(1)
	}
}

func loadConfig(fs afero.Fs, f flags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(fs, f.config); err != nil {
			return cfg, err
		}
	}
	if f.listen != "" {
		cfg.Listen = f.listen
	}
	if f.image != "" {
		cfg.Image = f.image
	}
	if f.burst != 0 {
		cfg.Burst = f.burst
	}
	return cfg, cfg.Validate()
}

func run(fs afero.Fs, f flags) error {
	cfg, err := loadConfig(fs, f)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	if f.profile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(f.profile), profile.NoShutdownHook).Stop()
	}

	emu := arm.New()
	defer emu.Close()
	regions, err := cfg.MemRegions()
	if err != nil {
		return err
	}
	for i, region := range regions {
		if err := emu.MemMap(region.Addr, region.Size, region.Prot); err != nil {
			return fmt.Errorf("map region %q: %w", cfg.Regions[i].Name, err)
		}
	}

	var entry uint64
	if cfg.Image != "" {
		mod, err := elf.Open(fs, cfg.Image)
		if err != nil {
			return err
		}
		defer mod.Close()
		for _, region := range mod.Regions() {
			log.Info("segment", slog.String("addr", fmt.Sprintf("%#x", region.Addr)), slog.String("size", fmt.Sprintf("%#x", region.Size)), slog.String("perm", region.Prot.String()))
		}
		if err := loader.Load(emu, mod); err != nil {
			return err
		}
		entry = mod.EntryAddr()
	}

	dbg, err := debugger.New(emu, debugger.WithBurst(cfg.Burst), debugger.WithEntry(entry), debugger.WithLogger(log))
	if err != nil {
		return err
	}
	defer dbg.Close()

	ln, err := socket.Listen(socket.TCP, cfg.Listen)
	if err != nil {
		return err
	}
	log.Info("waiting for a GDB connection", slog.String("addr", ln.Addr().String()))
	conn, err := ln.Accept()
	ln.Close()
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("debugger connected", slog.String("peer", conn.RemoteAddr().String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	context.AfterFunc(ctx, func() { conn.Close() })
	err = gdb.NewServer(dbg, gdb.WithLogger(log)).Serve(ctx, conn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
