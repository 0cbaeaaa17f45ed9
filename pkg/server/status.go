package server

import (
	"net/http"
)

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.topology.Topology())
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.latest.Station(id)
	if !ok {
		writeJSONError(w, "no data for station "+id, http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.latest.Device(id)
	if !ok {
		writeJSONError(w, "no data for device "+id, http.StatusNotFound)
		return
	}
	writeJSON(w, snap)
}
