// Command plot-track renders a waypoint map to PNG: the centerline, the
// lane boundaries, and optionally one recorded trajectory from a planner
// database session.
package main

import (
	"flag"
	"image/color"
	"log"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/highway-planner/internal/plannerdb"
	"github.com/banshee-data/highway-planner/internal/track"
)

var (
	mapFile     = flag.String("map", "data/highway_map.csv", "Waypoint map file")
	trackLength = flag.Float64("track-length", 6945.554, "Total track length in meters")
	out         = flag.String("out", "track.png", "Output PNG path")
	dbFile      = flag.String("db", "", "Planner database to read a trajectory from (optional)")
	session     = flag.String("session", "", "Session id to plot (default: latest)")
	tick        = flag.Int64("tick", -1, "Tick to plot (default: last recorded)")
)

// laneBoundary offsets every waypoint along its normal by d.
func laneBoundary(m *track.Map, d float64) plotter.XYs {
	wps := m.Waypoints()
	pts := make(plotter.XYs, 0, len(wps)+1)
	for _, wp := range wps {
		pts = append(pts, plotter.XY{X: wp.X + d*wp.DX, Y: wp.Y + d*wp.DY})
	}
	// Close the loop.
	pts = append(pts, pts[0])
	return pts
}

func loadTrajectory() (plotter.XYs, error) {
	db, err := plannerdb.NewDB(*dbFile)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	id := *session
	if id == "" {
		if id, err = db.LatestSession(); err != nil {
			return nil, err
		}
	}
	ticks, err := db.SessionTicks(id)
	if err != nil || len(ticks) == 0 {
		return nil, err
	}

	rec := ticks[len(ticks)-1]
	if *tick >= 0 {
		for _, t := range ticks {
			if t.Tick == *tick {
				rec = t
				break
			}
		}
	}

	pts := make(plotter.XYs, 0, len(rec.Trajectory))
	for _, p := range rec.Trajectory {
		pts = append(pts, plotter.XY{X: p.X, Y: p.Y})
	}
	return pts, nil
}

func main() {
	flag.Parse()

	m, err := track.LoadCSV(*mapFile, *trackLength)
	if err != nil {
		log.Fatalf("failed to load waypoint map: %v", err)
	}

	p := plot.New()
	p.Title.Text = "Highway Track"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	center, err := plotter.NewLine(laneBoundary(m, 0))
	if err != nil {
		log.Fatalf("failed to build centerline: %v", err)
	}
	center.Color = color.RGBA{R: 220, G: 160, B: 0, A: 255}
	p.Add(center)
	p.Legend.Add("centerline", center)

	for lane := 0; lane <= track.LaneCount; lane++ {
		boundary, err := plotter.NewLine(laneBoundary(m, track.LaneWidth*float64(lane)))
		if err != nil {
			log.Fatalf("failed to build lane boundary: %v", err)
		}
		boundary.Color = color.RGBA{R: 128, G: 128, B: 128, A: 255}
		boundary.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
		p.Add(boundary)
	}

	if *dbFile != "" {
		pts, err := loadTrajectory()
		if err != nil {
			log.Fatalf("failed to load trajectory: %v", err)
		}
		if len(pts) > 0 {
			traj, err := plotter.NewLine(pts)
			if err != nil {
				log.Fatalf("failed to build trajectory line: %v", err)
			}
			traj.Color = color.RGBA{R: 255, G: 40, B: 40, A: 255}
			traj.Width = vg.Points(2)
			p.Add(traj)
			p.Legend.Add("trajectory", traj)
		}
	}

	if err := p.Save(12*vg.Inch, 12*vg.Inch, *out); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	log.Printf("wrote %s", *out)
}
