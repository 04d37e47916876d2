package sim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/highway-planner/internal/planner"
	"github.com/banshee-data/highway-planner/internal/plannerdb"
	"github.com/banshee-data/highway-planner/internal/telemetry"
	"github.com/banshee-data/highway-planner/internal/track"
	"github.com/banshee-data/highway-planner/internal/trajectory"
)

func testMap(t *testing.T) *track.Map {
	t.Helper()
	points := make([]track.Waypoint, 0, 200)
	for i := 0; i < 200; i++ {
		points = append(points, track.Waypoint{
			X: float64(i) * 10, Y: 0,
			S:  float64(i) * 10,
			DX: 0, DY: -1,
		})
	}
	return track.New(points, 2000)
}

func testTelemetryFrame(t *testing.T) []byte {
	t.Helper()
	frame, err := telemetry.EncodeEvent("telemetry", telemetry.Telemetry{
		X: 50, Y: -6, S: 50, D: 6,
		Yaw: 0, Speed: 0,
		PreviousPathX: []float64{},
		PreviousPathY: []float64{},
		SensorFusion:  [][]float64{},
	})
	require.NoError(t, err)
	return frame
}

func dialTestServer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerTelemetryCycle(t *testing.T) {
	s := NewServer(testMap(t), planner.DefaultConfig(), nil, "")
	conn := dialTestServer(t, s)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, testTelemetryFrame(t)))

	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)

	event, payload, ok := telemetry.DecodeFrame(reply)
	require.True(t, ok, "reply frame not decodable: %s", reply)
	require.Equal(t, "control", event)

	var ctrl telemetry.Control
	require.NoError(t, json.Unmarshal(payload, &ctrl))
	require.Len(t, ctrl.NextX, trajectory.Horizon)
	require.Len(t, ctrl.NextY, trajectory.Horizon)
}

func TestServerManualMode(t *testing.T) {
	s := NewServer(testMap(t), planner.DefaultConfig(), nil, "")

	reply := s.handleMessage([]byte(`42["telemetry",null]`))
	require.Equal(t, `42["manual",{}]`, string(reply))

	// Manual mode must leave the planner state untouched.
	require.Equal(t, planner.State{Lane: 1, RefSpeed: 0}, s.state)

	// Non-websocket-event messages get no reply at all, and neither does a
	// bare event prefix with no body.
	require.Nil(t, s.handleMessage([]byte(`40`)))
	require.Nil(t, s.handleMessage([]byte(`42`)))
	require.Nil(t, s.handleMessage([]byte(`42["other",{}]`)))
}

func TestServerSequentialTicksRampSpeed(t *testing.T) {
	cfg := planner.DefaultConfig()
	s := NewServer(testMap(t), cfg, nil, "")

	frame := testTelemetryFrame(t)
	for i := 0; i < 3; i++ {
		require.NotNil(t, s.handleMessage(frame))
	}

	require.Equal(t, 1, s.state.Lane)
	require.InDelta(t, 3*cfg.AccelStepMph, s.state.RefSpeed, 1e-9)
}

func TestMonitorPage(t *testing.T) {
	db, err := plannerdb.NewDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	session, err := db.StartSession("test")
	require.NoError(t, err)

	s := NewServer(testMap(t), planner.DefaultConfig(), db, session)
	conn := dialTestServer(t, s)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, testTelemetryFrame(t)))
	_, _, err = conn.ReadMessage()
	require.NoError(t, err)

	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(fmt.Sprintf("%s/monitor?session=%s", srv.URL, session))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("no sessions", func(t *testing.T) {
		empty, err := plannerdb.NewDB(":memory:")
		require.NoError(t, err)
		defer empty.Close()

		s := NewServer(testMap(t), planner.DefaultConfig(), empty, "")
		srv := httptest.NewServer(s.Routes())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/monitor")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
