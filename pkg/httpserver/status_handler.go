package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mselser95/btc15m-maker/internal/decision"
	"github.com/mselser95/btc15m-maker/internal/matrix"
)

// StatusHandler serves a snapshot of the Decision Engine's and Matrix's
// health, replacing the teacher's orderbook handler with this domain's
// equivalent read-only status surface.
type StatusHandler struct {
	engine *decision.Engine
}

// NewStatusHandler builds a StatusHandler bound to engine.
func NewStatusHandler(engine *decision.Engine) *StatusHandler {
	return &StatusHandler{engine: engine}
}

// statusResponse is the JSON body of GET /api/status.
type statusResponse struct {
	EngineState string `json:"engine_state"`
}

// HandleStatus reports the Decision Engine's coarse state.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{EngineState: h.engine.State().String()}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// MatrixHandler serves the currently active Matrix's health summary.
type MatrixHandler struct {
	store matrix.Store
}

// NewMatrixHandler builds a MatrixHandler bound to store.
func NewMatrixHandler(store matrix.Store) *MatrixHandler {
	return &MatrixHandler{store: store}
}

type matrixHealthResponse struct {
	SnapshotID  int64   `json:"snapshot_id"`
	AgeSeconds  float64 `json:"age_seconds"`
	CellCount   int     `json:"cell_count"`
	TotalWindows int64  `json:"total_windows_observed"`
}

// HandleMatrixHealth reports coverage/age of the active Matrix snapshot, per
// the "matrix health" surface spec.md §6 describes for the Matrix Builder's
// `stats` CLI subcommand, exposed here for runtime observability too.
func (h *MatrixHandler) HandleMatrixHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.LoadActive(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.Error(w, "no active matrix snapshot", http.StatusServiceUnavailable)
		return
	}

	resp := matrixHealthResponse{
		SnapshotID:           snap.ID,
		AgeSeconds:           snap.Age(time.Now()).Seconds(),
		CellCount:            len(snap.Matrix.Cells),
		TotalWindows: snap.Matrix.Meta.TotalWindowsObserved,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
