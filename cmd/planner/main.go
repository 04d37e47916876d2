// Command planner runs the highway motion planner: it serves the simulator
// websocket, plans one trajectory per telemetry tick, and records each
// cycle to sqlite for the /monitor charts.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/highway-planner/internal/planner"
	"github.com/banshee-data/highway-planner/internal/plannerdb"
	"github.com/banshee-data/highway-planner/internal/sim"
	"github.com/banshee-data/highway-planner/internal/track"
)

var (
	listen      = flag.String("listen", ":4567", "Listen address for the simulator websocket")
	mapFile     = flag.String("map", "data/highway_map.csv", "Waypoint map file")
	trackLength = flag.Float64("track-length", 6945.554, "Total track length in meters (s wraps here)")
	dbFile      = flag.String("db", "planner_data.db", "Tick recording database; empty disables recording")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	m, err := track.LoadCSV(*mapFile, *trackLength)
	if err != nil {
		log.Fatalf("Failed to load waypoint map: %v", err)
	}
	log.Printf("Loaded %d waypoints from %s", len(m.Waypoints()), *mapFile)

	var db *plannerdb.DB
	var session string
	if *dbFile != "" {
		db, err = plannerdb.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		session, err = db.StartSession(*mapFile)
		if err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
		log.Printf("Recording session %s", session)
	}

	server := sim.NewServer(m, planner.DefaultConfig(), db, session)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    *listen,
		Handler: server.Routes(),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Listening on %s", *listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Print("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	wg.Wait()
}
