package main

import (
	"flag"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/xlab/closer"
	"golang.org/x/exp/slog"

	"kuberoom/internal/engine"
	"kuberoom/internal/frame"
	"kuberoom/internal/mesh"
	"kuberoom/internal/render"
	"kuberoom/internal/shader"
	"kuberoom/internal/texture"
)

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

// shutdownGrace bounds how long a signal waits for the main loop to unwind.
const shutdownGrace = 5 * time.Second

func main() {
	// closer runs its hooks on its own goroutine, so the hook only asks the
	// loop to stop. Teardown stays on the locked thread.
	sd := newShutdown(shutdownGrace)
	closer.Bind(sd.request)

	code := run(sd)
	sd.finish()
	os.Exit(code)
}

// run owns every resource through defers so they are released on this
// thread before the process exits.
func run(sd *shutdown) int {
	cfg, err := parseConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		log.Println("config:", err)
		return 1
	}

	assets, err := loadAssets(cfg)
	if err != nil {
		log.Println("load assets:", err)
		return 1
	}

	if err := glfw.Init(); err != nil {
		log.Println("init glfw:", err)
		return 1
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.width, cfg.height, "Kube Room", nil, nil)
	if err != nil {
		log.Println("create window:", err)
		return 1
	}
	defer window.Destroy()

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	renderer, err := render.New(window, render.Options{
		Validation:     cfg.enableValidation,
		Multisample:    cfg.multisample,
		FramesInFlight: cfg.framesInFlight,
		Camera:         camera(cfg),
		Logger:         newLogger(cfg.verbose),
	}, assets)
	if err != nil {
		log.Println("init vulkan:", err)
		return 1
	}
	defer renderer.Destroy()

	sync, err := frame.New(cfg.framesInFlight, renderer.ImageCount(), renderer.Fences())
	if err != nil {
		log.Println("frame slots:", err)
		return 1
	}
	loop := engine.New(renderer, sync, engine.NewStats(cfg.statsInterval))

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width int, height int) {
		loop.RequestRebuild()
	})

	log.Printf("Entering main loop")

	for !window.ShouldClose() && !sd.requested() {
		glfw.PollEvents()
		if _, err := loop.Tick(); err != nil {
			log.Println("draw frame:", err)
			return 1
		}
	}
	return 0
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func camera(cfg appConfig) render.Camera {
	cam := render.DefaultCamera()
	if cfg.modelPath == "" {
		// The cube spans [-1, 1] and needs more room than the room model.
		cam.Eye = mgl32.Vec3{3, 3, 3}
	}
	cam.Spin = float32(cfg.spin)
	return cam
}

// loadAssets reads everything the GPU needs before a window exists. A
// missing texture degrades to a checkerboard; a missing model or shader is
// fatal.
func loadAssets(cfg appConfig) (render.Assets, error) {
	var assets render.Assets

	stages, err := shader.LoadStages(cfg.shaderDir)
	if err != nil {
		return assets, err
	}
	assets.Shaders = stages

	if cfg.modelPath == "" {
		assets.Mesh = mesh.Cube()
	} else if assets.Mesh, err = mesh.LoadOBJ(cfg.modelPath); err != nil {
		return assets, err
	}
	log.Printf("Mesh: %d vertices, %d indices", len(assets.Mesh.Vertices), len(assets.Mesh.Indices))

	assets.Texture = texture.Checker()
	if cfg.texturePath != "" {
		px, err := texture.Load(cfg.texturePath)
		if err != nil {
			log.Printf("texture %s unusable, using checkerboard: %v", cfg.texturePath, err)
		} else {
			assets.Texture = px
		}
	}
	return assets, nil
}
