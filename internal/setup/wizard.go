// Package setup runs the interactive first-run wizard that writes the
// serialbridge config file.
package setup

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/bft-labs/serialbridge/internal/cliconfig"
	"github.com/bft-labs/serialbridge/internal/ports"
)

// BaudRates are offered in the baud select; anything else goes through the
// custom input.
var BaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400}

// manualPort is the select value that switches to a free-form port input.
const manualPort = "\x00manual"

// Answers holds the raw form values.
type Answers struct {
	Port       string
	ManualPort string
	BaudRate   int
	CustomBaud string
	Pattern    string
	ListenAddr string
}

// AnswersFrom seeds the form with cfg.
func AnswersFrom(cfg cliconfig.Config) Answers {
	a := Answers{
		Port:       cfg.Port,
		BaudRate:   cfg.BaudRate,
		Pattern:    cfg.Pattern,
		ListenAddr: cfg.ListenAddr,
	}
	if !isStandardBaud(cfg.BaudRate) {
		a.BaudRate = 0
		a.CustomBaud = strconv.Itoa(cfg.BaudRate)
	}
	return a
}

// Apply copies the answers onto cfg and validates the result.
func (a Answers) Apply(cfg cliconfig.Config) (cliconfig.Config, error) {
	port := a.Port
	if port == manualPort || port == "" {
		port = strings.TrimSpace(a.ManualPort)
	}
	if port == "" {
		return cfg, errors.New("no serial port selected")
	}
	cfg.Port = port

	if a.BaudRate > 0 {
		cfg.BaudRate = a.BaudRate
	} else {
		baud, err := parseBaud(a.CustomBaud)
		if err != nil {
			return cfg, err
		}
		cfg.BaudRate = baud
	}

	cfg.Pattern = strings.TrimSpace(a.Pattern)
	if addr := strings.TrimSpace(a.ListenAddr); addr != "" {
		cfg.ListenAddr = addr
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// PortOptions builds the port select options, always ending with a manual entry.
func PortOptions(found []ports.PortInfo) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(found)+1)
	for _, p := range found {
		label := p.Name
		if p.Description != "" {
			label = fmt.Sprintf("%s (%s)", p.Name, p.Description)
		}
		opts = append(opts, huh.NewOption(label, p.Name))
	}
	return append(opts, huh.NewOption("Enter manually...", manualPort))
}

// Run shows the wizard and writes the result to path.
func Run(lister ports.PortOpener, cfg cliconfig.Config, path string) (cliconfig.Config, error) {
	found, err := lister.List()
	if err != nil {
		found = nil
	}

	answers := AnswersFrom(cfg)
	if !hasPort(found, answers.Port) {
		answers.ManualPort = answers.Port
		answers.Port = manualPort
	}

	baudOptions := make([]huh.Option[int], 0, len(BaudRates)+1)
	for _, b := range BaudRates {
		baudOptions = append(baudOptions, huh.NewOption(strconv.Itoa(b), b))
	}
	baudOptions = append(baudOptions, huh.NewOption("Custom...", 0))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Serial Port").
				Options(PortOptions(found)...).
				Value(&answers.Port),

			huh.NewSelect[int]().
				Title("Select Baud Rate").
				Options(baudOptions...).
				Value(&answers.BaudRate),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Serial port name").
				Placeholder(cliconfig.DefaultConfig().Port).
				Value(&answers.ManualPort).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("port cannot be empty")
					}
					return nil
				}),
		).WithHideFunc(func() bool { return answers.Port != manualPort }),

		huh.NewGroup(
			huh.NewInput().
				Title("Enter custom baud rate").
				Value(&answers.CustomBaud).
				Validate(func(s string) error {
					_, err := parseBaud(s)
					return err
				}),
		).WithHideFunc(func() bool { return answers.BaudRate != 0 }),

		huh.NewGroup(
			huh.NewInput().
				Title("Value pattern").
				Description("Regular expression applied to each frame; empty keeps the raw text.").
				Value(&answers.Pattern).
				Validate(func(s string) error {
					if _, err := regexp.Compile(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("invalid pattern: %v", err)
					}
					return nil
				}),

			huh.NewInput().
				Title("HTTP listen address").
				Value(&answers.ListenAddr),
		),
	)

	if err := form.Run(); err != nil {
		return cfg, fmt.Errorf("form error: %w", err)
	}

	out, err := answers.Apply(cfg)
	if err != nil {
		return cfg, err
	}
	if err := cliconfig.WriteFileConfig(path, cliconfig.FileConfigFrom(out)); err != nil {
		return cfg, fmt.Errorf("write config: %w", err)
	}
	return out, nil
}

func parseBaud(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("baud rate cannot be empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid baud rate: must be a number")
	}
	if n <= 0 {
		return 0, errors.New("invalid baud rate: must be positive")
	}
	return n, nil
}

func isStandardBaud(b int) bool {
	for _, v := range BaudRates {
		if v == b {
			return true
		}
	}
	return false
}

func hasPort(found []ports.PortInfo, name string) bool {
	for _, p := range found {
		if p.Name == name {
			return true
		}
	}
	return false
}
