package collectors

import (
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/atlassian/distributor"
)

const listenerHTTP = "http"

// LogDrainHandler accepts log lines in a request body, for example from a
// Heroku log drain, and records the metrics the readers find in them.
type LogDrainHandler struct {
	Parser   distributor.Parser // Usually logline.Readers
	Recorder distributor.Recorder
	BadLines *BadLineLogger
	Logger   logrus.FieldLogger
}

func (h *LogDrainHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		h.Logger.WithError(err).Warn("Failed reading log drain body")
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return
	}
	metrics, err := h.Parser.Parse(body)
	if err != nil {
		h.BadLines.Log(listenerHTTP, body, err)
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	h.Recorder.Record(metrics)
	w.WriteHeader(http.StatusCreated)
}
