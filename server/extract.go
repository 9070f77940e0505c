package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Fasthei/charmine/core"
)

// The extract endpoint speaks the enrichment-skill batch format: each
// value carries a record id and a data payload, and the response echoes
// the record ids with per-record results and errors.

type extractRequest struct {
	Values []extractRecord `json:"values"`
}

type extractRecord struct {
	RecordID string      `json:"recordId"`
	Data     extractData `json:"data"`
}

type extractData struct {
	Text          string   `json:"text"`
	Persons       []string `json:"persons"`
	Organizations []string `json:"organizations,omitempty"`
}

type extractResponse struct {
	Values []extractResult `json:"values"`
}

type extractResult struct {
	RecordID string             `json:"recordId"`
	Data     *extractResultData `json:"data,omitempty"`
	Errors   []extractMessage   `json:"errors,omitempty"`
}

type extractResultData struct {
	Relationships []core.Relationship `json:"relationships"`
}

type extractMessage struct {
	Message string `json:"message"`
}

// handleExtract runs the deterministic extractor over each record. Only
// person names take part in pairing; organizations are accepted for
// payload compatibility.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp := extractResponse{Values: make([]extractResult, 0, len(req.Values))}
	for _, rec := range req.Values {
		result := extractResult{RecordID: rec.RecordID}

		if rec.Data.Text == "" {
			result.Errors = []extractMessage{{Message: "text is required"}}
			resp.Values = append(resp.Values, result)
			continue
		}

		rels := s.orch.Extract(rec.Data.Persons, rec.Data.Text)
		if rels == nil {
			rels = []core.Relationship{}
		}
		result.Data = &extractResultData{Relationships: rels}
		resp.Values = append(resp.Values, result)
	}

	s.writeJSON(w, http.StatusOK, resp)
}
