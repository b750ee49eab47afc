package speech

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/feichai0017/pdf-voice/pkg/logger"
)

type AcceleratorMode string

const (
	AcceleratorAuto AcceleratorMode = "auto"
	AcceleratorOn   AcceleratorMode = "on"
	AcceleratorOff  AcceleratorMode = "off"
)

var (
	defaultDevicePaths  = []string{"/dev/nvidia0", "/proc/driver/nvidia/version"}
	defaultProbeCommand = []string{"nvidia-smi", "-L"}
)

type ProbeConfig struct {
	Mode AcceleratorMode
	// DevicePaths are checked for existence in auto mode.
	DevicePaths []string
	// Command is run when no device path exists; success means a GPU is present.
	Command []string
}

// AcceleratorProbe decides whether the neural backend can run.
type AcceleratorProbe struct {
	mode        AcceleratorMode
	devicePaths []string
	command     []string
	logger      logger.Logger
}

func NewAcceleratorProbe(cfg ProbeConfig, log logger.Logger) *AcceleratorProbe {
	if cfg.Mode == "" {
		cfg.Mode = AcceleratorAuto
	}
	if cfg.DevicePaths == nil {
		cfg.DevicePaths = defaultDevicePaths
	}
	if cfg.Command == nil {
		cfg.Command = defaultProbeCommand
	}
	return &AcceleratorProbe{
		mode:        cfg.Mode,
		devicePaths: cfg.DevicePaths,
		command:     cfg.Command,
		logger:      log,
	}
}

func (p *AcceleratorProbe) Available(ctx context.Context) bool {
	switch p.mode {
	case AcceleratorOn:
		return true
	case AcceleratorOff:
		return false
	}

	for _, path := range p.devicePaths {
		if _, err := os.Stat(path); err == nil {
			p.logger.Info("Accelerator detected", logger.String("device", path))
			return true
		}
	}

	if len(p.command) == 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, p.command[0], p.command[1:]...).Run(); err != nil {
		p.logger.Info("No accelerator detected", logger.Error(err))
		return false
	}
	p.logger.Info("Accelerator detected", logger.String("command", p.command[0]))
	return true
}
