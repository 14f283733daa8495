package web

import (
	"net/http"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"time"
)

const profileDuration = 30 * time.Second

// traceProfiler serves one profile at a time, each capturing duration.
type traceProfiler struct {
	mutex    sync.Mutex
	duration time.Duration
}

func (tp *traceProfiler) Trace(w http.ResponseWriter, r *http.Request) {
	tp.mutex.Lock()
	defer tp.mutex.Unlock()
	if err := trace.Start(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer trace.Stop()
	tp.sleep(r)
}

func (tp *traceProfiler) PProf(w http.ResponseWriter, r *http.Request) {
	tp.mutex.Lock()
	defer tp.mutex.Unlock()
	if err := pprof.StartCPUProfile(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer pprof.StopCPUProfile()
	tp.sleep(r)
}

func (tp *traceProfiler) MemProf(w http.ResponseWriter, r *http.Request) {
	tp.mutex.Lock()
	defer tp.mutex.Unlock()
	runtime.GC()
	_ = pprof.Lookup("heap").WriteTo(w, 0)
}

// sleep waits for the profile duration, or until the client goes away.
func (tp *traceProfiler) sleep(r *http.Request) {
	t := time.NewTimer(tp.duration)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.Context().Done():
	}
}
