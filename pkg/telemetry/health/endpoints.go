package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"mercator-hq/warden/pkg/config"
)

// BuildInfo is served by the version endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// LivenessHandler always answers 200 while the process serves HTTP.
func (c *Checker) LivenessHandler() http.Handler {
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, c.Liveness())
	})
}

// ReadinessHandler answers 200 when all checks pass and 503 otherwise.
func (c *Checker) ReadinessHandler() http.Handler {
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		status := c.Readiness(r.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	})
}

// VersionHandler serves info. GoVersion is filled in when empty.
func VersionHandler(info BuildInfo) http.Handler {
	if info.GoVersion == "" {
		info.GoVersion = runtime.Version()
	}
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, info)
	})
}

// Mount registers the three endpoints on mux at the configured paths.
func (c *Checker) Mount(mux *http.ServeMux, cfg config.HealthConfig, info BuildInfo) {
	mux.Handle(cfg.LivenessPath, c.LivenessHandler())
	mux.Handle(cfg.ReadinessPath, c.ReadinessHandler())
	mux.Handle(cfg.VersionPath, VersionHandler(info))
}

func getOnly(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}
