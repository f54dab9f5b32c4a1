package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"kstatus/internal/kube"
	"kstatus/internal/logging"
	"kstatus/internal/metrics"
)

// Options configures a Server. Metrics may be nil, which also drops the
// /metrics route. An empty AllowedOrigins disables CORS handling.
type Options struct {
	Token          string
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

type Server struct {
	pipeline *kube.Pipeline
	token    string
	log      *slog.Logger
	metrics  *metrics.Metrics
	origins  []string
}

func New(p *kube.Pipeline, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		pipeline: p,
		token:    opts.Token,
		log:      log,
		metrics:  opts.Metrics,
		origins:  opts.AllowedOrigins,
	}
}

// namespacedKinds get a /api/v1/<kind>/{namespace} list route each.
var namespacedKinds = []kube.Kind{
	kube.KindPods,
	kube.KindDeployments,
	kube.KindStatefulSets,
	kube.KindJobs,
	kube.KindEvents,
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization"},
			ExposedHeaders:   []string{requestIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "service is running."})
	})
	// Probes never touch the API server.
	r.Get("/liveness", probe)
	r.Get("/readiness", probe)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.authMiddleware)

		api.Get("/namespaces", s.handleList(kube.KindNamespaces))
		for _, kind := range namespacedKinds {
			api.Get("/"+string(kind)+"/{namespace}", s.handleList(kind))
		}

		api.Get("/pods/{namespace}/{podName}/logs", s.handlePodLogs)
		api.Get("/events/{namespace}/{pod}", s.handleEvents)
		api.Get("/status/{namespace}", s.handleStatus)
	})

	return r
}

func probe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": true})
}

func (s *Server) handleList(kind kube.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		out, err := s.pipeline.List(r.Context(), kube.ListRequest{
			Kind:          kind,
			Namespace:     chi.URLParam(r, "namespace"),
			Name:          q.Get("name"),
			FieldSelector: q.Get("fieldSelector"),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, out)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.pipeline.Events(r.Context(), chi.URLParam(r, "namespace"), chi.URLParam(r, "pod"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, evs)
}

func (s *Server) handlePodLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := kube.LogOptions{Container: q.Get("container")}

	if raw := q.Get("tailLines"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, &kube.InvalidRequestError{Field: "tailLines", Reason: "not an integer"})
			return
		}
		opts.TailLines = &n
	}

	lines, err := s.pipeline.PodLogs(r.Context(), chi.URLParam(r, "namespace"), chi.URLParam(r, "podName"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, strings.Join(lines, "\n"))
}

// handleStatus lists several kinds at once. ?kinds=pods,jobs narrows the
// set; without it the default kinds are listed.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var kinds []kube.Kind
	if raw := r.URL.Query().Get("kinds"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			k, err := kube.ParseKind(part)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			kinds = append(kinds, k)
		}
	}

	out, err := s.pipeline.Status(r.Context(), chi.URLParam(r, "namespace"), kinds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, out)
}
