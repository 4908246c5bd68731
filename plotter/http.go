// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// HTTP server for plotter status and control

package plotter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/fogleman/gg"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Image geometry for the status picture.
const (
	imgWidth  = 800
	imgHeight = 120
	railLeft  = 40
	railRight = imgWidth - 40
	railY     = imgHeight / 2
)

// Status is the JSON status report.
type Status struct {
	Mode    string `json:"mode"`
	Flags   string `json:"flags"`
	State   State  `json:"state"`
	Origin  bool   `json:"origin"`
	Limit   bool   `json:"limit"`
	Pending int    `json:"pending"`
	Retired int    `json:"retired"`
	Steps   int64  `json:"steps"`
	Stats   *Stats `json:"stats,omitempty"`
}

// Status returns a status report for the plotter.
func (p *Plotter) Status() Status {
	o, l := p.Switches()
	return Status{
		Mode:    p.Mode().String(),
		Flags:   p.Flags().String(),
		State:   p.State(),
		Origin:  o,
		Limit:   l,
		Pending: p.Pending(),
		Retired: p.Retired(),
		Steps:   p.exec.Steps(),
		Stats:   p.Stats(),
	}
}

// Server serves the status and control API.
type Server struct {
	p        *Plotter
	router   *mux.Router
	upgrader websocket.Upgrader
	interval time.Duration // Status event period
}

// NewServer creates the HTTP handler for the plotter.
func NewServer(p *Plotter) *Server {
	s := &Server{p: p, router: mux.NewRouter(), interval: 250 * time.Millisecond}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	r := s.router
	r.HandleFunc("/status", s.status).Methods("GET")
	r.HandleFunc("/width", s.width).Methods("GET")
	r.HandleFunc("/plotter.png", s.image).Methods("GET")
	r.HandleFunc("/events", s.events).Methods("GET")
	r.HandleFunc("/move/{dir:left|right}/{steps:[0-9]+}", s.move).Methods("POST")
	r.HandleFunc("/speed/{pps:[0-9]+}", s.speed).Methods("POST")
	r.HandleFunc("/pause", s.pause).Methods("POST")
	r.HandleFunc("/resume", s.resume).Methods("POST")
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe runs the server on the port until it fails.
func (s *Server) ListenAndServe(port int) error {
	url := fmt.Sprintf(":%d", port)
	log.Printf("Starting server on %s", url)
	server := &http.Server{Addr: url, Handler: s}
	return server.ListenAndServe()
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.p.Status())
}

// width blocks until the width is known or the client goes away.
func (s *Server) width(w http.ResponseWriter, r *http.Request) {
	n, err := s.p.Width(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]int{"width": n})
}

func (s *Server) move(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	steps, err := strconv.Atoi(v["steps"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d := CounterClockwise
	if v["dir"] == "left" {
		d = Clockwise
	}
	s.queued(w, s.p.EnqueueMove(d, steps))
}

func (s *Server) speed(w http.ResponseWriter, r *http.Request) {
	pps, err := strconv.Atoi(mux.Vars(r)["pps"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.queued(w, s.p.EnqueueSetSpeed(pps))
}

func (s *Server) queued(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrQueueFull):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	s.p.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	s.p.Resume()
	w.WriteHeader(http.StatusNoContent)
}

// events streams the status as JSON messages whenever it changes.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("events: upgrade: %v", err)
		return
	}
	defer conn.Close()
	// Drain the client so close messages are seen.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	var last []byte
	for {
		b, err := json.Marshal(s.p.Status())
		if err != nil {
			log.Printf("events: %v", err)
			return
		}
		if string(b) != string(last) {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
			last = b
		}
		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

// image draws the rail, the switches and the carriage.
func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	st := s.p.Status()
	c := gg.NewContext(imgWidth, imgHeight)
	c.SetRGB(1, 1, 1)
	c.Clear()
	c.SetRGB(0, 0, 0)
	c.SetLineWidth(4)
	c.DrawLine(railLeft, railY, railRight, railY)
	c.Stroke()
	drawSwitch(c, railLeft, st.Origin)
	drawSwitch(c, railRight, st.Limit)
	if st.State.Width > 0 {
		x := railLeft + float64(st.State.Position)*(railRight-railLeft)/float64(st.State.Width)
		if st.Mode == ModePlotting.String() {
			c.SetRGB(0, 0, 1)
		} else {
			c.SetRGB(0.3, 0.3, 0.3)
		}
		c.DrawRectangle(x-10, railY-20, 20, 40)
		c.Fill()
	}
	c.SetRGB(0, 0, 0)
	c.DrawString(fmt.Sprintf("%s  pos %d/%d  %.0f PPS", st.Mode, st.State.Position, st.State.Width, st.State.CurrentSpeed), 10, imgHeight-10)
	w.Header().Set("Content-Type", "image/png")
	if err := c.EncodePNG(w); err != nil {
		log.Printf("Error writing image: %v", err)
	}
}

func drawSwitch(c *gg.Context, x float64, pressed bool) {
	if pressed {
		c.SetRGB(1, 0, 0)
	} else {
		c.SetRGB(0, 0.6, 0)
	}
	c.DrawCircle(x, railY, 8)
	c.Fill()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("json: %v", err)
	}
}
