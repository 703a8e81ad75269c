package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"loan-workers/internal/pipeline"
)

const eventError = "error"

type startPayload struct {
	Agent string `json:"agent"`
	Name  string `json:"name"`
}

type completePayload struct {
	Agent       string                 `json:"agent"`
	Name        string                 `json:"name"`
	Decision    pipeline.Decision      `json:"decision"`
	Score       int                    `json:"score"`
	Confidence  int                    `json:"confidence"`
	Explanation string                 `json:"explanation"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
}

type resultPayload struct {
	ApplicationID string             `json:"applicationId"`
	Status        pipeline.RunStatus `json:"status"`
	FinalDecision pipeline.Decision  `json:"finalDecision,omitempty"`
	DocumentURL   string             `json:"documentUrl,omitempty"`
	ErrorMessage  string             `json:"errorMessage,omitempty"`
	Summary       string             `json:"summary"`
	Verdicts      []pipeline.Verdict `json:"verdicts"`
	Scores        map[string]int     `json:"scores"`
	Decisions     map[string]string  `json:"decisions"`
	DurationMs    int64              `json:"durationMs"`
}

// handleEvaluateStream runs the pipeline and relays its events as
// server-sent events: agent_start, agent_complete, then complete.
func (s *Server) handleEvaluateStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	app, err := decodeApplication(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	completed := false
	for ev := range s.runner.RunStreaming(r.Context(), app) {
		kind, payload := ssePayload(ev)
		if err := writeEvent(w, kind, payload); err != nil {
			s.logger.WithError(err).Warn("stream write failed", map[string]interface{}{"applicationId": app.ID})
			continue
		}
		flusher.Flush()
		if ev.Kind == pipeline.EventComplete {
			completed = true
		}
	}

	if !completed {
		_ = writeEvent(w, eventError, map[string]string{"message": "evaluation ended without a result"})
		flusher.Flush()
	}
}

func ssePayload(ev pipeline.Event) (string, interface{}) {
	switch ev.Kind {
	case pipeline.EventStart:
		return string(ev.Kind), startPayload{Agent: ev.EvaluatorID, Name: ev.DisplayName}
	case pipeline.EventVerdict:
		v := ev.Verdict
		if v == nil {
			return eventError, map[string]string{"message": "verdict missing for " + ev.EvaluatorID}
		}
		return string(ev.Kind), completePayload{
			Agent:       v.EvaluatorID,
			Name:        v.DisplayName,
			Decision:    v.Decision,
			Score:       v.Score,
			Confidence:  v.Confidence,
			Explanation: v.Explanation,
			Detail:      v.Detail,
		}
	case pipeline.EventComplete:
		if ev.Result == nil {
			return eventError, map[string]string{"message": "result missing"}
		}
		return string(ev.Kind), newResultPayload(*ev.Result)
	default:
		return string(ev.Kind), ev
	}
}

func newResultPayload(res pipeline.Result) resultPayload {
	p := resultPayload{
		ApplicationID: res.ApplicationID,
		Status:        res.Status,
		FinalDecision: res.FinalDecision,
		ErrorMessage:  res.ErrorMessage,
		Summary:       pipeline.FormatSummary(res.Verdicts),
		Verdicts:      res.Verdicts,
		Scores:        make(map[string]int, len(res.Verdicts)),
		Decisions:     make(map[string]string, len(res.Verdicts)),
		DurationMs:    res.Duration.Milliseconds(),
	}
	if res.Document != nil {
		p.DocumentURL = res.Document.URL
	}
	for _, v := range res.Verdicts {
		p.Scores[v.EvaluatorID] = v.Score
		p.Decisions[v.EvaluatorID] = string(v.Decision)
	}
	return p
}

func writeEvent(w http.ResponseWriter, kind string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data)
	return err
}
