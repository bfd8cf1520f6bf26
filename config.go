package main

import (
	"flag"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"kuberoom/internal/vkerr"
)

const maxFramesInFlight = 4

type appConfig struct {
	modelPath        string
	texturePath      string
	shaderDir        string
	width            int
	height           int
	framesInFlight   int
	multisample      bool
	enableValidation bool
	verbose          bool
	spin             float64
	statsInterval    time.Duration
}

func parseConfig(args []string) (appConfig, error) {
	var cfg appConfig
	fs := flag.NewFlagSet("kuberoom", flag.ContinueOnError)
	fs.StringVar(&cfg.modelPath, "model", "", "OBJ model to show; the built-in cube when empty")
	fs.StringVar(&cfg.texturePath, "texture", "", "texture image (png, jpeg, bmp, tiff, webp, ppm)")
	fs.StringVar(&cfg.shaderDir, "shaders", "shaders", "directory holding vert.spv and frag.spv")
	fs.IntVar(&cfg.width, "width", 800, "initial window width")
	fs.IntVar(&cfg.height, "height", 600, "initial window height")
	fs.IntVar(&cfg.framesInFlight, "frames", 2, "frames in flight")
	fs.BoolVar(&cfg.multisample, "msaa", true, "multisample at the highest count the device supports")
	fs.BoolVar(&cfg.enableValidation, "validation", enableValidationLayers(), "enable Vulkan validation layers")
	fs.BoolVar(&cfg.verbose, "verbose", false, "log every device memory allocation")
	fs.Float64Var(&cfg.spin, "spin", 0, "model rotation in degrees per second")
	fs.DurationVar(&cfg.statsInterval, "stats", 5*time.Second, "frame rate log interval, 0 disables")
	if err := fs.Parse(args); err != nil {
		return appConfig{}, errors.Mark(err, vkerr.ErrSetup)
	}
	return cfg, cfg.validate()
}

func (c appConfig) validate() error {
	if c.width <= 0 || c.height <= 0 {
		return vkerr.Setupf("window size must be positive, got %dx%d", c.width, c.height)
	}
	if c.framesInFlight < 1 || c.framesInFlight > maxFramesInFlight {
		return vkerr.Setupf("frames in flight must be in 1..%d, got %d", maxFramesInFlight, c.framesInFlight)
	}
	if c.statsInterval < 0 {
		return vkerr.Setupf("stats interval must not be negative, got %s", c.statsInterval)
	}
	return nil
}

// enableValidationLayers reads VK_VALIDATION; unset means on.
func enableValidationLayers() bool {
	switch os.Getenv("VK_VALIDATION") {
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}
