package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pulsegrid/biometric_replay_server/internal/broker"
	"github.com/pulsegrid/biometric_replay_server/internal/logging"
	"github.com/pulsegrid/biometric_replay_server/internal/scenario"
	"github.com/pulsegrid/biometric_replay_server/internal/store"
)

// StatusResponse reports playback and connection state
type StatusResponse struct {
	Scenario      string `json:"scenario,omitempty"`
	Running       bool   `json:"running"`
	StreamClients int    `json:"stream_clients"`
	SocketClients int    `json:"socket_clients"`
}

// HandleGetStatus returns the current playback and connection state
func HandleGetStatus(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		name, running, streams, sockets := b.Status()
		response := StatusResponse{
			Scenario:      name,
			Running:       running,
			StreamClients: streams,
			SocketClients: sockets,
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
	}
}

// HandleGetLogs returns all stored log entries
func HandleGetLogs(logStore *logging.LogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		logs := logStore.GetAll()
		if err := json.NewEncoder(w).Encode(logs); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
	}
}

// HandleGetScenarios lists all available scenario names
func HandleGetScenarios(scenarios *scenario.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		names, err := scenarios.Names()
		if err != nil {
			http.Error(w, "Failed to list scenarios: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if names == nil {
			names = []string{}
		}

		if err := json.NewEncoder(w).Encode(names); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
	}
}

// HandleGetScenarioTimings returns the raw timing JSON of one scenario
func HandleGetScenarioTimings(scenarios *scenario.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		name := chi.URLParam(r, "name")
		data, err := scenarios.Raw(name)
		if err != nil {
			http.Error(w, "Scenario not found: "+err.Error(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// HandleUploadScenario accepts a scenario timing file upload and stores it in
// the database. Expects a multipart form with a "scenario" file field and a
// "name" field (defaults to the filename without extension).
func HandleUploadScenario(scenarioStore *store.ScenarioStore, logStore *logging.LogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Parse multipart form (max 10MB)
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("scenario")
		if err != nil {
			http.Error(w, "No file uploaded or invalid form field: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		if !strings.HasSuffix(strings.ToLower(header.Filename), ".json") {
			http.Error(w, "File must be a JSON timing file (.json)", http.StatusBadRequest)
			return
		}

		name := r.FormValue("name")
		if name == "" {
			name = strings.TrimSuffix(header.Filename, ".json")
		}

		fileBytes, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "Failed to read file: "+err.Error(), http.StatusInternalServerError)
			return
		}

		// Validate before storing so a corrupt upload can never break a start
		def, err := scenario.Parse(name, fileBytes)
		if err != nil {
			logStore.LogAndStore("error", "Rejected scenario upload %s: %v", name, err)
			http.Error(w, "Invalid scenario: "+err.Error(), http.StatusBadRequest)
			return
		}

		if err := scenarioStore.SaveScenario(name, string(fileBytes)); err != nil {
			logStore.LogAndStore("error", "Failed to save scenario to database: %v", err)
			http.Error(w, "Failed to save scenario: "+err.Error(), http.StatusInternalServerError)
			return
		}

		logStore.LogAndStore("info", "Scenario uploaded: %s (%d events)", name, len(def.Events))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":   name,
			"events": len(def.Events),
		})
	}
}

// HandleDeleteScenario removes an uploaded scenario by name
func HandleDeleteScenario(scenarioStore *store.ScenarioStore, logStore *logging.LogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		name := chi.URLParam(r, "name")
		if err := scenarioStore.DeleteScenario(name); err != nil {
			http.Error(w, "Failed to delete scenario: "+err.Error(), http.StatusInternalServerError)
			return
		}

		logStore.LogAndStore("info", "Scenario deleted: %s", name)
		w.WriteHeader(http.StatusNoContent)
	}
}

// StartRequest is the body of a start request
type StartRequest struct {
	Scenario string `json:"scenario"`
}

// HandleStartScenario starts a scenario via the REST surface; the command is
// routed through the same broker path as socket commands.
func HandleStartScenario(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		var req StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Scenario == "" {
			http.Error(w, "Request body must be {\"scenario\": \"<name>\"}", http.StatusBadRequest)
			return
		}

		if err := b.StartScenario(req.Scenario); err != nil {
			http.Error(w, "Failed to start scenario: "+err.Error(), http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}

// HandleStopScenario stops the running scenario, if any
func HandleStopScenario(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		b.StopScenario()
		w.WriteHeader(http.StatusAccepted)
	}
}
