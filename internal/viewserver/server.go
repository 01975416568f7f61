// Package viewserver exposes the dashboard over HTTP and streams live chart
// frames over websocket.
package viewserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	chart "github.com/wcharczuk/go-chart/v2"

	"stratum/internal/dashboard"
	"stratum/internal/render"
)

const (
	defaultIcon = "default.svg"
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	maxResize   = 1 << 10
)

// Server routes dashboard requests.
type Server struct {
	dash      *dashboard.Dashboard
	sparkline render.SparklineRenderer
	iconsDir  string
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
	mux       *http.ServeMux
}

// New constructs the server and its routes.
func New(d *dashboard.Dashboard, sparkline render.SparklineRenderer, iconsDir string, logger zerolog.Logger) *Server {
	s := &Server{
		dash:      d,
		sparkline: sparkline,
		iconsDir:  iconsDir,
		logger:    logger.With().Str("component", "viewserver").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/instruments", s.handleInstruments)
	s.mux.HandleFunc("GET /api/cards", s.handleCards)
	s.mux.HandleFunc("GET /api/cards/{id}", s.handleCard)
	s.mux.HandleFunc("GET /sparkline/{file}", s.handleSparkline)
	s.mux.HandleFunc("GET /icons/{name}", s.handleIcon)
	s.mux.HandleFunc("GET /ws/chart/{id}", s.handleChart)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("view server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("view server shutdown")
		}
		return nil
	}
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Instruments())
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Cards(r.URL.Query().Get("q")))
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	card, ok := s.dash.Card(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown instrument"})
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleSparkline(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	id, ok := strings.CutSuffix(file, ".svg")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	snap := s.dash.Trend(id)
	w.Header().Set("Cache-Control", "no-store")
	if len(snap.Series) < 2 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := s.sparkline.Render(w, chart.SVG, snap.Series, snap.Positive()); err != nil {
		s.logger.Error().Err(err).Str("instrument", id).Msg("render sparkline failed")
	}
}

func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(filepath.Base(r.PathValue("name")))
	for _, candidate := range []string{name, defaultIcon} {
		path := filepath.Join(s.iconsDir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Content-Type", "image/svg+xml")
			http.ServeFile(w, r, path)
			return
		}
	}
	http.NotFound(w, r)
}

type viewHello struct {
	View string `json:"view"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleChart opens a chart view that lives exactly as long as the socket.
// Text messages carry {"width","height","dpr"} resize notifications; frames
// are sent as binary PNG messages.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	size := sizeFromQuery(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	view, err := s.dash.OpenChart(ctx, r.PathValue("id"), size)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()), time.Now().Add(writeWait))
		return
	}
	defer view.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(viewHello{View: view.ID, ID: view.Instrument.ID, Name: view.Instrument.Name}); err != nil {
		return
	}

	go s.readResizes(cancel, conn, view)
	s.writeFrames(ctx, conn, view)
}

func (s *Server) readResizes(cancel context.CancelFunc, conn *websocket.Conn, view *dashboard.ChartView) {
	defer cancel()
	conn.SetReadLimit(maxResize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Str("view", view.ID).Msg("chart socket closed")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var size render.Size
		if err := json.Unmarshal(payload, &size); err != nil {
			s.logger.Debug().Err(err).Str("view", view.ID).Msg("ignoring malformed resize")
			continue
		}
		if err := view.Resize(size); err != nil {
			s.logger.Debug().Err(err).Str("view", view.ID).Msg("resize rejected")
		}
	}
}

func (s *Server) writeFrames(ctx context.Context, conn *websocket.Conn, view *dashboard.ChartView) {
	frames, unsubscribe := view.Subscribe()
	defer unsubscribe()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, f.PNG); err != nil {
				s.logger.Debug().Err(err).Str("view", view.ID).Msg("write frame failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func sizeFromQuery(r *http.Request) render.Size {
	q := r.URL.Query()
	parse := func(key string) float64 {
		v, err := strconv.ParseFloat(q.Get(key), 64)
		if err != nil || v < 0 {
			return 0
		}
		return v
	}
	return render.Size{Width: parse("width"), Height: parse("height"), DPR: parse("dpr")}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
