package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"picam/config"
	"picam/hw/sim"
	"picam/video"
	"picam/video/source"
	"picam/video/source/cvmat"
)

var (
	port          = flag.Int("port", 8080, "Port to serve metrics on.")
	configPath    = flag.String("config", "", "Path to a JSON configuration file. Reloaded on change.")
	level         = flag.String("level", "info", "Log level.")
	stillInterval = flag.Duration("still_interval", 10*time.Second, "Time between still captures. Zero disables stills.")
)

func main() {
	flag.Parse()

	lvl, err := log.ParseLevel(*level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *config.Config, 1)
	cfg := config.Default()
	if *configPath != "" {
		reload := config.ListenerFunc(func(c *config.Config) {
			select {
			case reloads <- c:
			case <-ctx.Done():
			}
		})
		if err := config.Load(ctx, *configPath, reload); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = config.Get()
	}

	opts, err := video.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	opts.Metrics = video.NewMetrics(prometheus.DefaultRegisterer)

	fps := cfg.Fps
	if fps <= 0 {
		fps = 30
	}
	driver := sim.New(&sim.Options{FrameInterval: time.Second / time.Duration(fps)})

	cam := video.NewCamera(driver, opts)
	defer cam.Close()

	if err := cam.CreateCamera(); err != nil {
		log.Fatalf("Failed to create camera: %v", err)
	}
	if err := cam.Apply(cfg); err != nil {
		log.Errorf("Failed to apply config: %v", err)
	}
	if err := cam.StartVideo(); err != nil {
		log.Fatalf("Failed to start video: %v", err)
	}
	frameBytes := uint64(cfg.Width * cfg.Height * cam.Encoding().BytesPerPixel())
	log.Infof("Capturing %dx%d %v frames of %s", cfg.Width, cfg.Height, cam.Encoding(), humanize.IBytes(frameBytes))

	go func() {
		log.Infof("Serving metrics on port %d", *port)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		h := handlers.LoggingHandler(log.StandardLogger().Writer(), mux)
		log.Println(http.ListenAndServe(fmt.Sprintf(":%d", *port), h))
	}()

	pool := source.NewFramePool(4)
	defer pool.Close()
	frames := make(chan *source.Frame)
	go grabFrames(ctx, cam, pool, frames)

	var stills <-chan time.Time
	if *stillInterval > 0 {
		t := time.NewTicker(*stillInterval)
		defer t.Stop()
		stills = t.C
	}
	still := cvmat.New()
	defer still.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	var count int
	for {
		select {
		case f := <-frames:
			count++
			if count%fps == 0 {
				log.Infof("Frame %d, mean intensity %.1f", count, f.Mean())
			}
			pool.Put(f)
		case <-stills:
			if err := cam.GrabStill(still); err != nil {
				log.Errorf("Failed to grab still: %v", err)
				continue
			}
			log.Infof("Still %dx%d, mean intensity %.1f", still.Mat.Cols(), still.Mat.Rows(), still.Mean())
		case c := <-reloads:
			// Resolution and timeouts only take effect on restart.
			if err := cam.Apply(c); err != nil {
				log.Errorf("Failed to apply new config: %v", err)
			}
		case sig := <-sigs:
			log.Println("Caught signal", sig)
			return
		}
	}
}

// grabFrames grabs video frames into frames from pool until ctx is done
// and passes each one on.
func grabFrames(ctx context.Context, cam *video.Camera, pool *source.FramePool, out chan<- *source.Frame) {
	for ctx.Err() == nil {
		f, err := pool.Get()
		if err != nil {
			log.Fatalf("Failed to get frame: %v", err)
		}
		if err := cam.GrabFrameContext(ctx, f); err != nil {
			pool.Put(f)
			if ctx.Err() == nil {
				log.Warnf("Failed to grab frame: %v", err)
			}
			continue
		}
		select {
		case out <- f:
		case <-ctx.Done():
			pool.Put(f)
		}
	}
}
