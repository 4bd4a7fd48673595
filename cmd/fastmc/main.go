package main

import (
	"bufio"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"

	yml "gopkg.in/yaml.v2"

	"github.com/lightsheet/fastmc/httpd"
	"github.com/lightsheet/fastmc/nidaq"
	"github.com/lightsheet/fastmc/pco"
	"github.com/lightsheet/fastmc/report"
	"github.com/lightsheet/fastmc/session"
	"github.com/lightsheet/fastmc/timing"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "fastmc.yml"
	k              = koanf.New(".")
)

type recorder struct {
	// Root is the root folder to write timing sidecars to
	Root string `yaml:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `yaml:"Prefix"`

	// Enabled turns sidecar recording on
	Enabled bool `yaml:"Enabled"`
}

type config struct {
	Addr      string          `yaml:"Addr"`
	ViewerURL string          `yaml:"ViewerURL"`
	RealTime  bool            `yaml:"RealTime"`
	Recorder  recorder        `yaml:"Recorder"`
	Resources nidaq.Resources `yaml:"Resources"`
	Limits    pco.Limits      `yaml:"Limits"`
	Request   timing.Request  `yaml:"Request"`
}

// openDevice produces the Device an acquisition runs against.  The stock
// build ships the simulator; a site with the real driver binding swaps
// this out.
var openDevice = func(cfg config) (nidaq.Device, error) {
	sim := nidaq.NewSim()
	sim.RealTime = cfg.RealTime
	return sim, nil
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:      ":8000",
		RealTime:  true,
		Recorder:  recorder{Prefix: "fastmc-", Root: "."},
		Resources: nidaq.DefaultResources(),
		Limits:    pco.Edge42(),
		Request: timing.Request{
			NumStacks:   1,
			Exposure:    10e-3,
			ReadoutMode: "fast",
			ImageHeight: 2048,
			ImageWidth:  2060}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `fastmc synchronizes camera, galvo and illumination channels from one
master stack trigger and runs multi-channel acquisition sequences with
hardware-level timing.

Usage:
	fastmc <command>

Commands:
	run
	serve
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `fastmc is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used.  The command
mkconf generates the configuration file with the default values.

run executes one acquisition described by the Request section of the
config, after showing the derived timing and asking for confirmation.
Configure the camera software separately: its timepoint count must equal
the TimePoints figure shown, and its interval must match StackDelay.

serve exposes preview and acquire over HTTP, see the httpd package.

The stock build drives the simulated device (RealTime true paces it at
the programmed trigger rate); link your driver binding to drive real
hardware.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("fastmc version %v\n", Version)
}

// waitForViewer polls the camera-viewer software's HTTP endpoint until it
// responds, so the operator is not asked to confirm a run the viewer
// cannot record.  This is a readiness gate on external software, not a
// retry of any hardware step.
func waitForViewer(url string) error {
	op := func() error {
		resp, err := http.Get(url)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}
	return backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     time.Second,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      time.Minute,
		Clock:               backoff.SystemClock})
}

// stdinConfirm presents the summary on the terminal and reads the
// operator's go/no-go
func stdinConfirm(sum session.Summary) (bool, error) {
	if sum.MultiD {
		fmt.Println("Running 3D acquisition")
		fmt.Printf("Volumes per second: %v\n", sum.VolumesPerSecond)
		fmt.Printf("Frames per z-stack: %v\n", sum.FramesPerStack)
	} else {
		fmt.Println("Running 2D acquisition")
		fmt.Printf("Frames per second: %v\n", sum.FramesPerSecond)
	}
	fmt.Printf("Total number of time points (input in camera software): %v\n", sum.TimePoints)
	fmt.Printf("Total acquisition time (s): %v\n", sum.TotalDuration)
	if sum.ReadoutLimited {
		fmt.Println("Limiting frame rate is readout time")
	}
	if sum.CablingHint != "" {
		fmt.Println(strings.Title(sum.CablingHint))
	}
	fmt.Print("Start acquisition? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

func run() {
	cfg := config{}
	k.Unmarshal("", &cfg)
	if cfg.ViewerURL != "" {
		log.Println("waiting for camera viewer at", cfg.ViewerURL)
		if err := waitForViewer(cfg.ViewerURL); err != nil {
			log.Fatal("camera viewer not reachable: ", err)
		}
	}
	dev, err := openDevice(cfg)
	if err != nil {
		log.Fatal(err)
	}
	var rec *report.Recorder
	if cfg.Recorder.Enabled {
		rec = &report.Recorder{Root: cfg.Recorder.Root, Prefix: cfg.Recorder.Prefix, Enabled: true}
	}
	spin, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[11],
		Suffix:          " acquiring",
		StopMessage:     "acquisition complete",
		StopFailMessage: "acquisition failed"})
	if err != nil {
		log.Fatal(err)
	}
	s := &session.Session{
		Req:       cfg.Request,
		Limits:    cfg.Limits,
		Resources: cfg.Resources,
		Device:    dev,
		Recorder:  rec,
		Confirm: session.ConfirmFunc(func(sum session.Summary) (bool, error) {
			ok, err := stdinConfirm(sum)
			if ok {
				spin.Start()
			}
			return ok, err
		})}
	res, err := s.Run()
	if err != nil {
		spin.StopFail()
		log.Fatal(err)
	}
	if res.Aborted {
		fmt.Println("acquisition cancelled")
		return
	}
	spin.Stop()
	fmt.Printf("completed in %v\n", res.Elapsed)
}

func serve() {
	cfg := config{}
	k.Unmarshal("", &cfg)
	dev, err := openDevice(cfg)
	if err != nil {
		log.Fatal(err)
	}
	var rec *report.Recorder
	if cfg.Recorder.Enabled {
		rec = &report.Recorder{Root: cfg.Recorder.Root, Prefix: cfg.Recorder.Prefix, Enabled: true}
	}
	srv := httpd.NewServer(cfg.Limits, cfg.Resources, dev, rec)
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Mount("/", srv.Routes())
	log.Println("now listening for requests at", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, r))
}

func main() {
	setupconfig()
	if len(os.Args) == 1 {
		root()
		return
	}
	switch os.Args[1] {
	case "run":
		run()
	case "serve":
		serve()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "version":
		pversion()
	case "help":
		help()
	default:
		root()
	}
}
