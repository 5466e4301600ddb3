package main

import (
	"fmt"
	"log/slog"

	"github.com/oszuidwest/zwfm-soundguard/internal/config"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral/hostaudio"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral/logsink"
	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral/serial"
)

// openPeripherals brings up the configured driver. The returned close
// function releases the hardware.
func openPeripherals(snap config.Snapshot) (peripheral.Set, func() error, error) {
	clock := peripheral.SystemClock{}

	switch snap.Driver {
	case config.DriverSerial:
		bridge, err := serial.Open(snap.SerialPort, snap.BaudRate, snap.PixelCount)
		if err != nil {
			return peripheral.Set{}, nil, err
		}
		return peripheral.Set{
			Pixels:  bridge,
			Tone:    bridge,
			Samples: bridge,
			Clock:   clock,
		}, bridge.Close, nil

	case config.DriverHost:
		capture, err := hostaudio.Open(snap.CaptureDevice, snap.ADCFullScale)
		if err != nil {
			return peripheral.Set{}, nil, err
		}
		slog.Info("no LED matrix on host driver, logging frames instead", "pixels", snap.PixelCount)
		return peripheral.Set{
			Pixels:  logsink.NewMatrix(snap.PixelCount, nil),
			Tone:    logsink.NewBuzzer(clock, nil),
			Samples: capture,
			Clock:   clock,
		}, capture.Close, nil

	default:
		return peripheral.Set{}, nil, fmt.Errorf("unknown hardware driver %q", snap.Driver)
	}
}

// listDevices prints the host capture devices.
func listDevices() error {
	devices, err := hostaudio.ListCaptureDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, d.Name)
	}
	return nil
}
