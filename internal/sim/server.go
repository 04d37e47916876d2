// Package sim serves the highway simulator: a websocket endpoint that runs
// one full planning cycle per telemetry message, plus a monitor page
// charting the recorded session.
package sim

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/highway-planner/internal/planner"
	"github.com/banshee-data/highway-planner/internal/plannerdb"
	"github.com/banshee-data/highway-planner/internal/telemetry"
	"github.com/banshee-data/highway-planner/internal/track"
	"github.com/banshee-data/highway-planner/internal/trajectory"
)

// Server owns the persistent planner state. Cycles never overlap: the
// simulator maintains one connection and waits for each control reply, and
// the read loop processes messages strictly in order, so no locking guards
// the state.
type Server struct {
	m        *track.Map
	cfg      planner.Config
	state    planner.State
	tick     int64
	db       *plannerdb.DB // nil disables recording
	session  string
	upgrader websocket.Upgrader
}

// NewServer creates a planning server starting in lane 1 at zero reference
// speed, ramping up from standstill without jerk. db may be nil.
func NewServer(m *track.Map, cfg planner.Config, db *plannerdb.DB, session string) *Server {
	return &Server{
		m:       m,
		cfg:     cfg,
		state:   planner.State{Lane: 1, RefSpeed: 0},
		db:      db,
		session: session,
	}
}

// Routes returns the HTTP mux: the simulator websocket at / and the
// monitor page at /monitor.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSimulator)
	mux.HandleFunc("/monitor", s.handleMonitor)
	return mux
}

func (s *Server) handleSimulator(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("simulator connected from %s", conn.RemoteAddr())

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("simulator disconnected: %v", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply := s.handleMessage(data)
		if reply == nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			log.Printf("failed to write reply: %v", err)
			return
		}
	}
}

// handleMessage runs at most one planning cycle and returns the frame to
// send back, or nil when the message warrants no reply.
func (s *Server) handleMessage(data []byte) []byte {
	event, payload, ok := telemetry.DecodeFrame(data)
	if !ok {
		// An event frame with no telemetry payload: the simulator is in
		// manual mode. The core is bypassed and the planner state stays
		// untouched. A bare "42" carries no event and gets no reply.
		if len(data) > 2 && string(data[:2]) == "42" {
			return telemetry.ManualFrame()
		}
		return nil
	}
	if event != "telemetry" {
		return nil
	}

	var tm telemetry.Telemetry
	if err := json.Unmarshal(payload, &tm); err != nil {
		log.Printf("malformed telemetry payload: %v", err)
		return telemetry.ManualFrame()
	}

	path := s.plan(&tm)
	reply, err := telemetry.ControlFrame(path)
	if err != nil {
		log.Printf("failed to encode control frame: %v", err)
		return nil
	}
	return reply
}

// plan executes one full planning cycle against a telemetry snapshot.
func (s *Server) plan(tm *telemetry.Telemetry) []trajectory.Point {
	ego := tm.Ego()
	retained := tm.Retained()
	vehicles := tm.Vehicles()

	// Plan from the end of the retained path; those points will be driven
	// before any new ones.
	endS := ego.S
	if len(retained) > 0 {
		endS = tm.EndPathS
	}

	prior := s.state
	s.state = planner.Plan(endS, vehicles, len(retained), prior, s.cfg)
	path := trajectory.Generate(ego, retained, endS, s.state, s.m)
	s.tick++

	if s.db != nil {
		// Same snapshot the decision saw: Costs is a pure function of its
		// inputs, so recomputing it here is exact.
		costs, _ := planner.Costs(endS, vehicles, len(retained), prior, s.cfg)
		err := s.db.RecordTick(s.session, plannerdb.TickRecord{
			Tick: s.tick,
			EgoX: ego.X, EgoY: ego.Y,
			EgoS: ego.S, EgoD: ego.D,
			Lane:       s.state.Lane,
			RefSpeed:   s.state.RefSpeed,
			Costs:      costs,
			Trajectory: path,
		})
		if err != nil {
			log.Printf("failed to record tick %d: %v", s.tick, err)
		}
	}
	return path
}
