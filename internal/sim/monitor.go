package sim

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleMonitor renders line charts of reference speed and lane choice over
// the recorded ticks of a session. Query params:
//   - session (optional; defaults to the latest session)
func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "tick recording is disabled", http.StatusNotFound)
		return
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		latest, err := s.db.LatestSession()
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to find latest session: %v", err), http.StatusInternalServerError)
			return
		}
		session = latest
	}
	if session == "" {
		http.Error(w, "no recorded sessions", http.StatusNotFound)
		return
	}

	ticks, err := s.db.SessionTicks(session)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to load ticks: %v", err), http.StatusInternalServerError)
		return
	}
	if len(ticks) == 0 {
		http.Error(w, "session has no recorded ticks", http.StatusNotFound)
		return
	}

	xAxis := make([]string, 0, len(ticks))
	speed := make([]opts.LineData, 0, len(ticks))
	lane := make([]opts.LineData, 0, len(ticks))
	for _, rec := range ticks {
		xAxis = append(xAxis, strconv.FormatInt(rec.Tick, 10))
		speed = append(speed, opts.LineData{Value: rec.RefSpeed})
		lane = append(lane, opts.LineData{Value: rec.Lane})
	}

	speedChart := charts.NewLine()
	speedChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Reference Speed", Subtitle: fmt.Sprintf("session=%s ticks=%d (mph)", session, len(ticks))}),
	)
	speedChart.SetXAxis(xAxis).AddSeries("ref_speed", speed)

	laneChart := charts.NewLine()
	laneChart.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Target Lane", Subtitle: "0 = left, 2 = right"}),
	)
	laneChart.SetXAxis(xAxis).AddSeries("lane", lane)

	page := components.NewPage()
	page.AddCharts(speedChart, laneChart)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("failed to render charts: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
