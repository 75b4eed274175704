package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"sova/assistant"
	"sova/audio"
	"sova/beep"
	"sova/clipboard"
	"sova/config"
	"sova/doctor"
	"sova/hotkey"
	"sova/llm"
	"sova/log"
	"sova/login"
	"sova/shutdown"
	"sova/stt"
	"sova/tray"
	"sova/tts"
	"sova/update"
)

var version = "dev"

const tapDebounce = 300 * time.Millisecond

var (
	replyMu      sync.Mutex
	lastReply    string
	sessionCount int
)

var (
	orchMu     sync.Mutex
	activeOrch *assistant.Orchestrator
)

func setOrch(o *assistant.Orchestrator) {
	orchMu.Lock()
	activeOrch = o
	orchMu.Unlock()
}

func cancelActive() {
	orchMu.Lock()
	o := activeOrch
	orchMu.Unlock()
	if o != nil {
		o.Cancel()
	}
}

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		replyMu.Lock()
		n := sessionCount
		replyMu.Unlock()
		if n > 0 {
			log.SessionEnd(n)
		}
		log.Close()
		tray.Quit()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		return
	}
	openCrashFile()
}

func openCrashFile() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

// hudSurface fans session views out to the tray and remembers the last
// reply for the Copy Last Reply menu item. The inner surface (TUI or
// HUD window) does the actual rendering.
type hudSurface struct {
	inner assistant.Surface
}

func (s hudSurface) Update(v assistant.View) {
	tray.SetBusy(v.State.InFlight())
	if v.State == assistant.StateCapturing {
		go beep.PlayStart()
	}
	if v.Err != nil {
		tray.SetError(v.Status)
		go beep.PlayError()
	}
	if v.State == assistant.StateSpeaking && v.Text != "" {
		replyMu.Lock()
		lastReply = v.Text
		replyMu.Unlock()
	}
	if v.State == assistant.StateDone {
		go beep.PlayEnd()
		replyMu.Lock()
		sessionCount++
		replyMu.Unlock()
	}
	if s.inner != nil {
		s.inner.Update(v)
	}
}

func (s hudSurface) Hide() {
	tray.SetBusy(false)
	if s.inner != nil {
		s.inner.Hide()
	}
}

func runUpdateCommand() {
	if version == "dev" {
		fmt.Println("Dev build — cannot check for updates.")
		os.Exit(0)
	}
	fmt.Printf("sova %s — checking for updates...\n", version)
	rel, err := update.CheckLatest(version)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if rel == nil {
		fmt.Println("Already up to date.")
		os.Exit(0)
	}
	fmt.Printf("Update available: %s -> %s\n", version, rel.Version)
	fmt.Print("Continue? [y/N] ")
	var answer string
	fmt.Scanln(&answer)
	if answer != "y" && answer != "Y" {
		fmt.Println("Aborted.")
		os.Exit(0)
	}
	fmt.Printf("Downloading %s...\n", rel.Version)
	if err := update.Apply(rel); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated to %s\n", rel.Version)
	os.Exit(0)
}

func runLoginCommand(args []string) {
	action := "status"
	if len(args) > 0 {
		action = args[0]
	}
	switch action {
	case "install":
		if err := login.Enable(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("sova will start at login.")
	case "remove":
		if err := login.Disable(); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("sova will no longer start at login.")
	case "status":
		if login.Enabled() {
			fmt.Println("Start at login: enabled")
		} else {
			fmt.Println("Start at login: disabled")
		}
	default:
		fmt.Printf("Usage: sova login [install|remove|status]\n")
		os.Exit(1)
	}
	os.Exit(0)
}

func run() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "update":
			runUpdateCommand()
		case "login":
			runLoginCommand(os.Args[2:])
		}
	}

	configFlag := flag.String("config", "", "Config directory (default: OS-specific location)")
	initFlag := flag.Bool("init", false, "Write a sample config file and exit")
	setupFlag := flag.Bool("setup", false, "Select microphone device and save it to the config")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	langFlag := flag.String("lang", "", "Override recognition language (e.g., en-US, th-TH)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	fakeFlag := flag.String("fake", "", "Replay a WAV file instead of capturing the microphone")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven; requires -fake)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Bool("gui", false, "Run with the desktop HUD window (requires a gui build)")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	openCrashFile()

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("sova %s\n", version)
		os.Exit(0)
	}

	cfgDir := *configFlag
	if cfgDir == "" {
		cfgDir, err = config.DefaultDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to resolve config directory: %v\n", err)
			os.Exit(1)
		}
	}
	if *initFlag {
		path, err := config.WriteSample(cfgDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote sample config to %s\n", path)
		os.Exit(0)
	}

	cfg, err := config.Load(cfgDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *langFlag != "" {
		cfg.Speech.Language = *langFlag
	}
	if *deviceFlag != "" {
		cfg.Speech.Device = *deviceFlag
	}
	if cfg.Logging.Dir != "" && *logPathFlag == "" {
		log.SetDir(cfg.Logging.Dir)
		if err := log.EnsureDir(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
		}
	}

	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	combo, err := hotkey.ParseCombo(cfg.Hotkey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: bad hotkey %q in config: %v\n", cfg.Hotkey, err)
		os.Exit(1)
	}

	// Resolve -setup into a saved device choice early (before daemonization)
	if *setupFlag {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		dev, err := audio.SelectDevice(actx)
		actx.Close()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		cfg.Speech.Device = dev.Name
		if err := config.Write(cfgDir, cfg); err != nil {
			fmt.Printf("Warning: could not save config: %v\n", err)
		} else {
			fmt.Printf("Saved device %q to %s\n", dev.Name, config.Path(cfgDir))
		}
	}

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !*tuiFlag && !*testFlag && os.Getenv("_SOVA_BG") == "" {
		args := os.Args[1:]
		if cfg.Speech.Device != "" {
			args = append(args, "-device", cfg.Speech.Device)
		}
		exe, _ := os.Executable()
		cmd := exec.Command(exe, args...)
		cmd.Env = append(os.Environ(), "_SOVA_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	} else {
		log.SessionStart(cfg.LLM.Model, cfg.Voice.Name, cfg.Speech.Language)
	}

	var actx audio.Context
	if *fakeFlag != "" {
		actx, err = audio.NewFakeContext(*fakeFlag, true)
		if err != nil {
			log.Errorf("fake audio init error: %v", err)
			fmt.Printf("Error loading WAV: %v\n", err)
			os.Exit(1)
		}
	} else {
		actx, err = audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			fmt.Printf("Error initializing audio context: %v\n", err)
			os.Exit(1)
		}
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if cfg.Speech.Device != "" && *fakeFlag == "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == cfg.Speech.Device {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			log.Warnf("configured device %q not found, using default", cfg.Speech.Device)
		} else if audio.IsBluetooth(selectedDevice.Name) {
			log.Warn("bluetooth microphone selected, capture quality may suffer")
		}
	}

	recognizer := stt.NewGoogle(cfg.Speech.Language, os.Getenv("SOVA_STT_API_KEY"))
	listener := stt.NewListener(actx, selectedDevice, recognizer, stt.ListenerConfig{
		EnergyThreshold: cfg.Speech.EnergyThreshold,
		PauseThreshold:  cfg.PauseThreshold(),
		PhraseTimeLimit: cfg.PhraseTimeLimit(),
	})

	brain := llm.New(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		System:      cfg.LLM.System,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLMTimeout(),
		HistoryMax:  cfg.LLM.HistoryMax,
	})

	speaker := tts.NewSpeaker(tts.NewEdge(cfg.Voice.Name), tts.NewPlayer())

	var inner assistant.Surface
	switch {
	case guiMode:
		inner = guiSurface
	case *tuiFlag && !*testFlag:
		inner = tuiSurface{}
	}

	orch := assistant.New(listener, brain, speaker, hudSurface{inner: inner}, assistant.Options{
		AutoHideDelay: cfg.AutoHideDelay(),
	})
	orch.Start()
	defer orch.Close()
	setOrch(orch)

	if *testFlag {
		if *fakeFlag == "" {
			fmt.Fprintln(os.Stderr, "Usage: sova -test -fake <wav-file>")
			os.Exit(1)
		}
		beep.Disable()
		runTestMode(orch)
		return
	}

	go beep.Init()

	if inner != nil && !guiMode {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(combo.String(), orch.Activate, orch.Cancel)
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()
	}

	tray.SetHotkeyLabel(combo.String())
	tray.OnAsk(orch.Activate)
	tray.OnCopyLast(func() {
		replyMu.Lock()
		text := lastReply
		replyMu.Unlock()
		if text != "" {
			clipboard.Copy(text)
		}
	})
	tray.SetLogin(login.Enabled())
	tray.OnLogin(func(on bool) error {
		if on {
			return login.Enable()
		}
		return login.Disable()
	})
	trayQuit := tray.Init()

	update.StartBackgroundCheck(version, log.Dir(), func(rel update.Release) {
		log.Info("update_available: " + rel.Version)
	})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-trayQuit:
		}
		gracefulShutdown()
	}()

	hk, err := hotkey.New(combo)
	if err != nil {
		log.Errorf("hotkey init error: %v", err)
		fmt.Printf("Error creating hotkey: %v\n", err)
		os.Exit(1)
	}
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey %s: %v\n", combo, err)
		os.Exit(1)
	}
	defer hk.Unregister()

	log.Info("ready: " + combo.String())

	tap := hotkey.NewTap(hk, tapDebounce)
	for range tap.Activations() {
		orch.Activate()
	}
}
