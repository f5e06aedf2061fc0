// Package web serves the single-field question form and the result display.
package web

import (
	"errors"
	"html/template"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/rizome-dev/researchgo/pkg/render"
	"github.com/rizome-dev/researchgo/pkg/research"
	"github.com/rizome-dev/researchgo/pkg/submitter"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>LLM Research Agent</title></head>
<body>
<div class="container">
<h1>LLM Research Agent</h1>
{{if .Notice}}<div class="notice" role="alert">{{.Notice}}</div>{{end}}
<form method="post" action="/">
<input name="question" value="{{.Question}}" placeholder="Enter your question" class="input">
<button type="submit"{{if .Submitting}} disabled{{end}}>{{if .Submitting}}Processing...{{else}}Submit{{end}}</button>
</form>
{{.Result}}
</div>
</body>
</html>
`))

type pageData struct {
	Notice     string
	Question   string
	Submitting bool
	Result     template.HTML
}

// Server hosts the form for one local user session
type Server struct {
	submitter *submitter.Submitter
	logger    research.Logger
	router    chi.Router

	mu     sync.Mutex
	notice string
}

// NewServer creates a server that sends questions through fetcher
func NewServer(fetcher research.Fetcher, logger research.Logger) *Server {
	s := &Server{logger: logger}
	s.submitter = submitter.New(fetcher,
		submitter.WithErrorReporter(s.reportError),
		submitter.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Post("/", s.handleSubmit)
	r.Get("/healthz", s.handleHealth)
	s.router = r

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Submitter exposes the session's submitter
func (s *Server) Submitter() *submitter.Submitter {
	return s.submitter
}

func (s *Server) reportError(question string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = "Error fetching answer: " + err.Error()
}

func (s *Server) takeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	notice := s.notice
	s.notice = ""
	return notice
}

func (s *Server) setNotice(notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = notice
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	state := s.submitter.Snapshot()
	data := pageData{
		Notice:     s.takeNotice(),
		Question:   state.Question,
		Submitting: state.IsSubmitting(),
		Result:     render.HTML(render.Render(state.Result)),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil && s.logger != nil {
		s.logger.Error("Failed to render page", "error", err)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	_, err := s.submitter.Submit(r.Context(), r.PostForm.Get("question"))
	if errors.Is(err, submitter.ErrSubmissionInFlight) {
		s.setNotice("A question is already being processed.")
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
