package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/comptonizing/eq500x/eq500x"
	"github.com/comptonizing/eq500x/internal/observability"
	"github.com/comptonizing/eq500x/site"
	"github.com/comptonizing/eq500x/telescope"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// statusReport is the mount status as published to clients, decorated
// with the horizontal frame for the current site.
type statusReport struct {
	eq500x.Status
	Azimuth  float64
	Altitude float64
}

// Server publishes mount status over HTTP and websockets and relays
// client commands to the mount.
type Server struct {
	mu      sync.Mutex
	mount   *eq500x.Mount
	site    *site.Site
	metrics *observability.MountCollector

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     statusReport
	statusSeq  int
}

// NewServer builds a Server without a mount. The caller attaches the mount
// after constructing it with s.statusCallback, which closes the cycle
// between the two.
func NewServer(st *site.Site, metrics *observability.MountCollector) *Server {
	s := &Server{site: st, metrics: metrics}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Errorln(err)
		return
	}
	w.Write(data)
}

// Command is one mount instruction sent over the websocket.
type Command struct {
	Command   string  `json:"command"`
	RA        float64 `json:"ra"`
	DEC       float64 `json:"dec"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Errorln(err)
		return
	}

	// Read and process incoming messages
	go func() {
		for {
			var msg Command
			if err := conn.ReadJSON(&msg); err != nil {
				cancel()
				conn.Close()
				break
			}
			s.dispatch(msg)
		}
	}()

	// The cond waiter below wakes on status broadcasts only, so poke it
	// once the client goes away.
	go func() {
		<-ctx.Done()
		s.statusCond.Broadcast()
	}()

	send := func(status statusReport) error {
		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	s.statusMu.RLock()
	status := s.status
	seq := s.statusSeq
	s.statusMu.RUnlock()
	if err := send(status); err != nil {
		log.Errorln(err)
		return
	}

	for {
		s.statusMu.RLock()
		for s.statusSeq == seq && ctx.Err() == nil {
			s.statusCond.Wait()
		}
		status := s.status
		seq = s.statusSeq
		s.statusMu.RUnlock()
		if ctx.Err() != nil {
			return
		}
		if err := send(status); err != nil {
			log.Errorln(err)
			return
		}
	}
}

func (s *Server) dispatch(msg Command) {
	switch msg.Command {
	case "goto":
		s.run("goto", func() error { return s.mount.Goto(msg.RA, msg.DEC) })
	case "sync":
		s.run("sync", func() error {
			_, err := s.mount.Sync(msg.RA, msg.DEC)
			return err
		})
	case "abort":
		s.run("abort", func() error { return s.mount.Abort() })
	case "set_location":
		s.run("set_location", func() error { return s.mount.UpdateLocation(msg.Latitude, msg.Longitude) })
	default:
		log.Warnf("unknown command %q", msg.Command)
	}
}

// run serializes one mount command and records its outcome.
func (s *Server) run(command string, fn func() error) error {
	s.mu.Lock()
	err := fn()
	s.mu.Unlock()
	outcome := "ok"
	if err != nil {
		outcome = "error"
		log.Errorf("%s: %v", command, err)
	}
	s.metrics.IncCommand(command, outcome)
	return err
}

func (s *Server) statusCallback(status telescope.Status) {
	snap, ok := status.(eq500x.Status)
	if !ok {
		return
	}
	az, alt := s.site.HorizontalAt(snap.RA, snap.DEC)
	report := statusReport{Status: snap, Azimuth: az, Altitude: alt}

	s.statusMu.Lock()
	s.status = report
	s.statusSeq++
	s.statusCond.Broadcast()
	s.statusMu.Unlock()

	s.metrics.ObservePosition(snap.RA, snap.DEC, snap.State == telescope.StateSlewing, snap.AtPark)
}
