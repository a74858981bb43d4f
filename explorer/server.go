// Package explorer exposes bridges over HTTP for interactive control. A
// session wraps one bridge; callers create a session for a building and
// weather file, reset it, step it with explicit actuator values and watch
// observations stream over a websocket. It is the manual counterpart to
// the agent loop, useful for poking at a building by hand.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/zeu5/building-rl-env/sim"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sessions carry no credentials, any origin may watch
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Config parameterizes the explorer service.
type Config struct {
	// Addr is the listen address, for example ":8080".
	Addr string
	// NewBridge builds a bridge for the requested building and weather
	// files. Returning an error rejects the session request.
	NewBridge func(building, weather string) (*sim.Bridge, error)
}

// Server is the HTTP service holding the live sessions.
type Server struct {
	addr      string
	newBridge func(building, weather string) (*sim.Bridge, error)
	server    *http.Server

	lock     *sync.Mutex
	sessions map[string]*Session
}

func NewServer(cfg Config) *Server {
	s := &Server{
		addr:      cfg.Addr,
		newBridge: cfg.NewBridge,
		lock:      new(sync.Mutex),
		sessions:  make(map[string]*Session),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/sessions", s.handleList)
	r.POST("/sessions", s.handleCreate)
	r.POST("/sessions/:id/reset", s.handleReset)
	r.POST("/sessions/:id/step", s.handleStep)
	r.GET("/sessions/:id/observation", s.handleObservation)
	r.GET("/sessions/:id/watch", s.handleWatch)
	r.DELETE("/sessions/:id", s.handleDelete)
	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	return s
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.server.ListenAndServe()
	}()
}

// Shutdown stops serving and closes every live session.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)

	s.lock.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for id, session := range s.sessions {
		sessions = append(sessions, session)
		delete(s.sessions, id)
	}
	s.lock.Unlock()
	for _, session := range sessions {
		if err := session.Close(); err != nil {
			logrus.Errorf("explorer: closing session %s: %v", session.ID, err)
		}
	}
}

func (s *Server) session(id string) (*Session, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

type createRequest struct {
	Building string `json:"building"`
	Weather  string `json:"weather"`
}

func (s *Server) handleCreate(c *gin.Context) {
	req := createRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	if req.Building == "" || req.Weather == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "building and weather are required"})
		return
	}
	bridge, err := s.newBridge(req.Building, req.Weather)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session := newSession(req.Building, req.Weather, bridge)
	s.lock.Lock()
	s.sessions[session.ID] = session
	s.lock.Unlock()

	logrus.Infof("explorer: new session %s for %s", session.ID, req.Building)
	c.JSON(http.StatusOK, gin.H{
		"id":        session.ID,
		"keys":      bridge.Template().FlattenKeys(),
		"actuators": bridge.Actuators(),
	})
}

func (s *Server) handleList(c *gin.Context) {
	s.lock.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.lock.Unlock()
	sort.Strings(ids)
	c.JSON(http.StatusOK, gin.H{"sessions": ids})
}

func (s *Server) handleReset(c *gin.Context) {
	session, ok := s.session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	obs, err := session.Reset(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		protocol := &sim.ProtocolError{}
		if errors.As(err, &protocol) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"observation": obs, "state": session.State().String()})
}

type stepRequest struct {
	Actions map[string]float64 `json:"actions"`
}

func (s *Server) handleStep(c *gin.Context) {
	session, ok := s.session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	req := stepRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to unmarshal request"})
		return
	}
	obs, done, err := session.Step(c.Request.Context(), req.Actions)
	if err != nil {
		crash := &sim.SimulationCrashed{}
		if errors.As(err, &crash) {
			// the run is over, report it as a final step rather than a
			// server failure
			c.JSON(http.StatusOK, gin.H{"done": true, "crashed": true, "error": crash.Error()})
			return
		}
		status := http.StatusInternalServerError
		protocol := &sim.ProtocolError{}
		if errors.As(err, &protocol) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"observation": obs, "done": done, "state": session.State().String()})
}

func (s *Server) handleObservation(c *gin.Context) {
	session, ok := s.session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"observation": session.Observation(), "state": session.State().String()})
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	s.lock.Lock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.lock.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	if err := session.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logrus.Infof("explorer: closed session %s", id)
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// handleWatch upgrades to a websocket and streams every step update of the
// session until either side goes away.
func (s *Server) handleWatch(c *gin.Context) {
	session, ok := s.session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("explorer: ws upgrade failed: %v", err)
		return
	}
	sub := session.Watch()
	defer session.Unwatch(sub)
	defer conn.Close()

	// reader goroutine, handles pongs and close messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case u, ok := <-sub:
			if !ok {
				// session closed
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
