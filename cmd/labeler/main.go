// Command labeler replays recorded segmentation captures through the
// fiducial pattern labeling engine. It prints a per-frame summary, can
// persist outcomes to a session database for calibration QA, and can serve
// the debug monitor while replaying.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/attica-surgical/fidlabel/internal/capture"
	"github.com/attica-surgical/fidlabel/internal/config"
	"github.com/attica-surgical/fidlabel/internal/fiducial"
	"github.com/attica-surgical/fidlabel/internal/labeldb"
	"github.com/attica-surgical/fidlabel/internal/monitor"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Phantom definition file")
	dbPath     = flag.String("db", "", "Session database path (empty disables persistence)")
	notes      = flag.String("notes", "", "Session notes recorded with the run")
	listen     = flag.String("listen", "", "Serve the debug monitor on this address (empty disables)")
	wait       = flag.Bool("wait", false, "Keep the monitor running after replay until interrupted")
)

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: labeler [flags] capture.json [capture.json ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load phantom definition: %v", err)
	}

	labeler, err := fiducial.NewLabeler(cfg.LabelerParams())
	if err != nil {
		log.Fatalf("configure labeler: %v", err)
	}

	var db *labeldb.LabelDB
	sessionID := ""
	if *dbPath != "" {
		db, err = labeldb.Open(*dbPath)
		if err != nil {
			log.Fatalf("open session database: %v", err)
		}
		defer db.Close()

		sessionID, err = db.StartSession(cfg.Patterns[0].Name, *notes)
		if err != nil {
			log.Fatalf("start session: %v", err)
		}
		log.Printf("session %s", sessionID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ws *monitor.WebServer
	if *listen != "" {
		ws = monitor.NewWebServer(*listen, labeler)
		go func() {
			if err := ws.Start(ctx); err != nil {
				log.Printf("monitor shutdown: %v", err)
			}
		}()
	}

	frameIndex := 0
	matched := 0
	for _, path := range flag.Args() {
		rec, err := capture.ReadFile(path)
		if err != nil {
			log.Fatalf("read capture %s: %v", path, err)
		}

		for _, cf := range rec.Frames {
			frame := cf.ToFiducial()
			outcome := labeler.FindPattern(frame)

			if outcome.DotsFound {
				matched++
				log.Printf("frame %d: matched template %d with %d dots (intensity %.1f)",
					frameIndex, outcome.TemplateID, len(outcome.Results), outcome.PatternIntensity)
			} else {
				log.Printf("frame %d: no pattern recognized", frameIndex)
			}

			if ws != nil {
				ws.Publish(frameIndex, frame, outcome)
			}
			if db != nil {
				if err := db.RecordOutcome(sessionID, frameIndex, cf.TSUnixNanos, outcome); err != nil {
					log.Fatalf("record frame %d: %v", frameIndex, err)
				}
			}
			frameIndex++
		}
	}

	log.Printf("replayed %d frames, %d matched", frameIndex, matched)

	if db != nil {
		stats, err := db.Stats(sessionID)
		if err != nil {
			log.Fatalf("session stats: %v", err)
		}
		log.Printf("match rate %.1f%%, mean intensity %.1f", stats.MatchRate*100, stats.MeanIntensity)
		if err := db.EndSession(sessionID); err != nil {
			log.Fatalf("end session: %v", err)
		}
	}

	if ws != nil && *wait {
		log.Printf("replay done; monitor still serving on %s (interrupt to exit)", *listen)
		<-ctx.Done()
	}
}
