package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/mrmaniac/vos/kernel"
	"github.com/mrmaniac/vos/platform"
	"github.com/mrmaniac/vos/vfs"
)

const usage = `voskernel - a userspace micro-kernel for native and scripted processes

voskernel loads a boot directory of native drivers (shared libraries) and
embedded scripts, runs them, and drives a synchronous render/event loop
until interrupted.
`

var (
	version  string
	commitId string
	builtAt  string
	builtBy  string
)

func runProfiler(ctx *cli.Context) (interface{ Stop() }, error) {
	var prof interface{ Stop() }

	cpuOn := ctx.Bool("cpu-profiling")
	memOn := ctx.Bool("memory-profiling")
	if cpuOn && memOn {
		return nil, fmt.Errorf("unsupported parameter combination: cpu and memory profiling")
	}
	if !(cpuOn || memOn) {
		return nil, nil
	}

	if cpuOn {
		prof = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	}
	if memOn {
		prof = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	}
	return prof, nil
}

func exitHandler(signalChan chan os.Signal, k *kernel.Kernel, prof interface{ Stop() }) {
	s := <-signalChan
	logrus.Warnf("voskernel caught signal: %s", s)
	logrus.Info("Stopping (gracefully) ...")

	kernel.Destroy(k)
	if prof != nil {
		prof.Stop()
	}

	logrus.Info("Exiting ...")
	os.Exit(0)
}

func main() {
	app := cli.NewApp()
	app.Name = "voskernel"
	app.Usage = usage
	app.Version = version

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "root",
			Value: ".",
			Usage: "boot directory to resolve process paths against",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "log file path or empty string for stderr output",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log categories to include (debug, info, warning, error, fatal)",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "log format; must be json or text",
		},
		cli.BoolFlag{
			Name:   "cpu-profiling",
			Usage:  "enable cpu-profiling data collection",
			Hidden: true,
		},
		cli.BoolFlag{
			Name:   "memory-profiling",
			Usage:  "enable memory-profiling data collection",
			Hidden: true,
		},
	}

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("voskernel\n\tversion: \t%s\n\tcommit: \t%s\n\tbuilt at: \t%s\n\tbuilt by: \t%s\n",
			c.App.Version, commitId, builtAt, builtBy)
	}

	var logFile *os.File

	app.Before = func(ctx *cli.Context) error {
		if path := ctx.GlobalString("log"); path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0o666)
			if err != nil {
				return fmt.Errorf("opening log file %v: %v", path, err)
			}
			logFile = f
			logrus.SetOutput(f)
		} else {
			logrus.SetOutput(os.Stderr)
		}

		if ctx.GlobalString("log-format") == "json" {
			logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
		} else {
			logrus.SetFormatter(&logrus.TextFormatter{TimestampFormat: "2006-01-02 15:04:05", FullTimestamp: true})
		}

		return nil
	}

	app.Action = func(ctx *cli.Context) error {
		logrus.Info("Initiating voskernel ...")

		root, err := platform.AbsPath(ctx.GlobalString("root"))
		if err != nil {
			return fmt.Errorf("resolving boot directory: %w", err)
		}

		consoleTarget := os.Stderr
		if logFile != nil {
			consoleTarget = logFile
		}
		console := platform.NewConsole(consoleTarget, ctx.GlobalString("log-level"))

		k := kernel.Create(root, console, vfs.NewOS())

		bootDir, err := k.VFS().Load(root)
		if err != nil {
			return fmt.Errorf("loading boot directory %s: %w", root, err)
		}
		if err := k.VFS().Read(bootDir); err != nil {
			return fmt.Errorf("reading boot directory %s: %w", root, err)
		}

		loadedCount := 0
		for name, child := range bootDir.Children {
			if child.Type == vfs.TypeDirectory {
				continue
			}
			p, err := k.Load(child.Path)
			if err != nil {
				console.Warnf("skipping %s: %v", name, err)
				continue
			}
			if err := k.Run(p); err != nil {
				console.Warnf("running %s: %v", name, err)
				continue
			}
			loadedCount++
		}
		console.Infof("loaded %d process(es) from %s", loadedCount, root)

		prof, err := runProfiler(ctx)
		if err != nil {
			return err
		}

		exitChan := make(chan os.Signal, 1)
		signal.Notify(exitChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go exitHandler(exitChan, k, prof)

		logrus.Info("Ready ...")

		for {
			data := kernel.RenderEventData(time.Now().UnixNano(), nil)
			k.Trigger(kernel.EventKernelRender, data)
			time.Sleep(16 * time.Millisecond)
		}
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatalf("%v", err)
		os.Exit(1)
	}
}
