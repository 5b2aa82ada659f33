package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hazyhaar/beamscope/pipeline"
	"github.com/hazyhaar/beamscope/store"
)

// recentRows is how much history the chart endpoint returns.
const recentRows = 50

// downloadLimit caps an unbounded CSV export.
const downloadLimit = 20000

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLatestData returns the most recent measurements in column
// orientation, oldest first, ready for direct chart ingestion.
func (s *Server) handleLatestData(w http.ResponseWriter, r *http.Request) {
	rows, err := s.st.Recent(r.Context(), recentRows)
	if err != nil {
		s.logger.Error("web: latest_data query", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	n := len(rows)
	out := columnData{
		Timestamps: make([]string, n),
		CX:         make([]float64, n),
		CY:         make([]float64, n),
	}
	for i := range out.Temps {
		out.Temps[i] = make([]float64, n)
	}
	// Recent returns newest first; charts want time flowing left to right.
	for i, m := range rows {
		j := n - 1 - i
		out.Timestamps[j] = m.Timestamp
		out.CX[j] = m.CX
		out.CY[j] = m.CY
		for k, v := range m.Temps {
			out.Temps[k][j] = v
		}
	}
	writeJSON(w, http.StatusOK, out.toMap())
}

type columnData struct {
	Timestamps []string
	CX         []float64
	CY         []float64
	Temps      [4][]float64
}

func (c columnData) toMap() map[string]any {
	m := map[string]any{
		"timestamps": c.Timestamps,
		"cx":         c.CX,
		"cy":         c.CY,
	}
	for i, t := range c.Temps {
		m[fmt.Sprintf("temp%d", i+1)] = t
	}
	return m
}

// handleSetMode switches the acquisition gating policy at runtime.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var mode pipeline.Mode
	switch r.URL.Query().Get("mode") {
	case "trigger":
		mode = pipeline.Triggered
	case "continuous":
		mode = pipeline.Continuous
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("web: mode must be trigger or continuous"))
		return
	}
	s.pipe.SetMode(mode)
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode.String()})
}

// handleDownload streams measurements as CSV. With from and to query
// parameters (store.TimeLayout) it exports that range; otherwise the
// most recent downloadLimit rows. Rows are streamed, never buffered.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	name := "beamscope_" + time.Now().Format("20060102_1504") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "CenterX", "CenterY", "T1", "T2", "T3", "T4"}); err != nil {
		return
	}

	err := s.st.EachInRange(r.Context(), from, to, downloadLimit, func(m store.Measurement) error {
		rec := []string{
			m.Timestamp,
			strconv.FormatFloat(m.CX, 'f', 2, 64),
			strconv.FormatFloat(m.CY, 'f', 2, 64),
		}
		for _, v := range m.Temps {
			rec = append(rec, strconv.FormatFloat(v, 'f', 2, 64))
		}
		return cw.Write(rec)
	})
	if err != nil {
		// Headers are out; nothing to do but log and truncate.
		s.logger.Error("web: csv export aborted", "error", err)
		return
	}
	cw.Flush()
}

// handleIndex serves the minimal built-in viewer: the live stream and
// the mode toggle, enough to verify a station from any browser.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>beamscope</title></head>
<body style="background:#111;color:#ddd;font-family:sans-serif">
<h1>beamscope</h1>
<img src="/mjpeg_stream" alt="live view">
<p>
<a href="/api/set_mode?mode=continuous">continuous</a> |
<a href="/api/set_mode?mode=trigger">trigger</a> |
<a href="/download">download csv</a>
</p>
</body>
</html>
`
