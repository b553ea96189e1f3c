package actions

import (
	"encoding/json"
	"net/http"
)

// Request is the action-server webhook body.
type Request struct {
	NextAction string  `json:"next_action"`
	SenderID   string  `json:"sender_id"`
	Tracker    Tracker `json:"tracker"`
}

// Tracker is the slice of conversation state the actions read.
type Tracker struct {
	SenderID      string         `json:"sender_id,omitempty"`
	LatestMessage LatestMessage  `json:"latest_message"`
	Slots         map[string]any `json:"slots,omitempty"`
}

type LatestMessage struct {
	Text string `json:"text"`
}

// Event is a tracker event returned to the dialogue layer.
type Event struct {
	Event string `json:"event"`
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Message is one bot utterance.
type Message struct {
	Text string `json:"text"`
}

// Response is the webhook reply.
type Response struct {
	Events    []Event   `json:"events"`
	Responses []Message `json:"responses"`
}

// Say is a response with one utterance and no events.
func Say(text string) Response {
	return Response{Events: []Event{}, Responses: []Message{{Text: text}}}
}

// SlotSet is the event that sets a slot.
func SlotSet(name string, value any) Event {
	return Event{Event: "slot", Name: name, Value: value}
}

type actionError struct {
	Error      string `json:"error"`
	ActionName string `json:"action_name"`
}

// Handler serves POST /webhook and GET /actions.
func (r *Registry) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", r.handleWebhook)
	mux.HandleFunc("GET /actions", func(w http.ResponseWriter, _ *http.Request) {
		names := make([]map[string]string, 0, len(r.actions))
		for _, n := range r.Names() {
			names = append(names, map[string]string{"name": n})
		}
		writeJSON(w, http.StatusOK, names)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (r *Registry) handleWebhook(w http.ResponseWriter, req *http.Request) {
	var body Request
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, actionError{Error: "invalid request body"})
		return
	}
	resp, ok := r.Run(req.Context(), body)
	if !ok {
		r.log.Warn("actions: unknown action", "action", body.NextAction)
		writeJSON(w, http.StatusNotFound, actionError{
			Error:      "No registered action found for name '" + body.NextAction + "'.",
			ActionName: body.NextAction,
		})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
