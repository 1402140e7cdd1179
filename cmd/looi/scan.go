package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/looidrive/pkg/ble"
	"github.com/gwillem/looidrive/pkg/robot"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type ScanCommand struct {
	Name     string        `long:"name" description:"Advertised name substring (overrides config)"`
	Duration time.Duration `long:"duration" default:"10s" description:"How long to scan"`
	NoSave   bool          `long:"no-save" description:"List devices without saving a choice"`
}

func (c *ScanCommand) Execute(args []string) error {
	cfg, logger, logFile, err := setup()
	if err != nil {
		return err
	}
	defer logFile.Close()
	if c.Name != "" {
		cfg.NameContains = c.Name
	}

	fmt.Println(headerStyle.Render("LOOI Scan"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━"))
	fmt.Println()
	fmt.Printf("Searching for '%s' for %s...\n\n", cfg.NameContains, c.Duration)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelScan := context.WithTimeout(ctx, c.Duration)
	defer cancelScan()

	transport := ble.NewTransport(cfg.Endpoints, logger)
	devices, err := transport.ScanAll(ctx, robot.NameContains(cfg.NameContains))
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No robots found.")
		fmt.Println("Make sure the robot is powered on and not connected to another host.")
		return robot.ErrDiscovery
	}

	// Strongest signal first
	sort.Slice(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })
	fmt.Println(renderDevices(devices))
	fmt.Println()

	if c.NoSave {
		return nil
	}

	address, err := chooseDevice(devices)
	if err != nil || address == "" {
		fmt.Println(dimStyle.Render("Nothing saved."))
		return nil
	}

	cfg.Address = address
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	logger.Info("device saved", "address", address, "path", opts.Config)

	fmt.Println(successStyle.Render("Robot saved: " + address))
	fmt.Printf("Configuration saved to %s\n\n", opts.Config)
	fmt.Println("Start driving with: " + headerStyle.Render("looi drive"))
	return nil
}

func renderDevices(devices []robot.Device) string {
	headerCell := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	nameCell := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.Name, d.Address, fmt.Sprintf("%d dBm", d.RSSI)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Name", "Address", "Signal").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			if col == 0 {
				return nameCell
			}
			return cell
		})
	return t.Render()
}

func chooseDevice(devices []robot.Device) (string, error) {
	var options []huh.Option[string]
	for _, d := range devices {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", d.Name, d.Address), d.Address))
	}
	options = append(options, huh.NewOption("Cancel", ""))

	var address string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which robot do you want to drive?").
				Options(options...).
				Value(&address),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return address, nil
}
