package server

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/joseph-ayodele/patient-docs/constants"
	"github.com/joseph-ayodele/patient-docs/internal/common"
	"github.com/joseph-ayodele/patient-docs/internal/extract"
	"github.com/joseph-ayodele/patient-docs/internal/pipeline"
	"github.com/joseph-ayodele/patient-docs/internal/render"
)

const (
	SessionCookie = "patientdoc_session"
	maxInputRunes = 20000
)

//go:embed templates/*.html
var templateFS embed.FS

// Generator is the part of the pipeline the web UI drives.
type Generator interface {
	Generate(ctx context.Context, text string) (pipeline.Result, error)
}

// UI serves the password gate, the generate form and the document download.
type UI struct {
	gen       Generator
	model     string
	password  string
	sessions  *SessionStore
	templates *template.Template
	logger    *slog.Logger
}

// NewUI parses the embedded page templates. model is shown on the form page.
func NewUI(gen Generator, model, password string, sessions *SessionStore, logger *slog.Logger) (*UI, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sessions == nil {
		sessions = NewSessionStore()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &UI{
		gen:       gen,
		model:     model,
		password:  password,
		sessions:  sessions,
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Handler returns the routed UI.
func (u *UI) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", u.withSession(u.handleIndex))
	mux.HandleFunc("POST /login", u.withSession(u.handleLogin))
	mux.HandleFunc("POST /logout", u.withSession(u.handleLogout))
	mux.HandleFunc("POST /generate", u.withSession(u.requireAuth(u.handleGenerate)))
	mux.HandleFunc("GET /download", u.withSession(u.requireAuth(u.handleDownload)))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

// withSession resolves the cookie to a stored session. Requests without one get a
// transient session; only a successful login stores a session and sets the cookie.
func (u *UI) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sess *Session
		if c, err := r.Cookie(SessionCookie); err == nil {
			if v := common.NewValidator().Field("session", c.Value, common.UUID); !v.HasErrors() {
				sess = u.sessions.Get(c.Value)
			}
		}
		if sess == nil {
			sess = newTransientSession()
		}
		ctx := common.WithSessionID(r.Context(), sess.ID)
		next(w, r.WithContext(ctx), sess)
	}
}

func (u *UI) requireAuth(next sessionHandler) sessionHandler {
	return func(w http.ResponseWriter, r *http.Request, sess *Session) {
		if !sess.Authenticated() {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	}
}

type pageError struct {
	Category string
	Detail   string
	Raw      string
}

type pageData struct {
	Model      string
	Text       string
	Busy       bool
	Error      *pageError
	LoginError string
	RecordJSON string
	Filename   string
	MIMEType   string
}

func (u *UI) handleIndex(w http.ResponseWriter, r *http.Request, sess *Session) {
	if !sess.Authenticated() {
		u.renderPage(w, http.StatusOK, "login.html", pageData{})
		return
	}
	data := pageData{Model: u.model, Text: sess.LastText(), Busy: sess.Busy()}
	if doc, ok := sess.Document(); ok {
		data.Filename = doc.Filename
		data.MIMEType = doc.MIMEType
	}
	u.renderPage(w, http.StatusOK, "index.html", data)
}

func (u *UI) handleLogin(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	got := r.PostFormValue("password")
	if subtle.ConstantTimeCompare([]byte(got), []byte(u.password)) != 1 {
		u.logger.Warn("ui.login.rejected", "session_id", sess.ID)
		u.renderPage(w, http.StatusUnauthorized, "login.html", pageData{LoginError: "Incorrect password"})
		return
	}
	if !sess.Authenticated() {
		sess = u.sessions.New()
		sess.SetAuthenticated(true)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
	u.logger.Info("ui.login.ok", "session_id", sess.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (u *UI) handleLogout(w http.ResponseWriter, r *http.Request, sess *Session) {
	sess.SetAuthenticated(false)
	u.sessions.Delete(sess.ID)
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (u *UI) handleGenerate(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	text := r.PostFormValue("text")
	sess.SetLastText(text)
	data := pageData{Model: u.model, Text: text}

	v := common.NewValidator().Field("text", text, maxRunes(maxInputRunes))
	if v.HasErrors() {
		data.Error = &pageError{Detail: v.ErrorMessage()}
		u.renderPage(w, http.StatusBadRequest, "index.html", data)
		return
	}

	if !sess.TryBegin() {
		data.Busy = true
		data.Error = &pageError{Detail: common.ErrBusy.Error()}
		u.renderPage(w, http.StatusConflict, "index.html", data)
		return
	}
	defer sess.End()

	start := time.Now()
	sess.SetDocument(nil)
	res, err := u.gen.Generate(r.Context(), text)
	if err != nil {
		u.logger.Error("ui.generate.failed",
			"session_id", sess.ID,
			"req_id", res.RequestID,
			"err", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		data.Error = describeError(err)
		var re *render.Error
		if errors.As(err, &re) {
			data.RecordJSON = recordJSON(re.Record)
		}
		u.renderPage(w, statusFor(err), "index.html", data)
		return
	}

	doc := res.Document
	sess.SetDocument(&doc)
	data.RecordJSON = recordJSON(res.Record)
	data.Filename = doc.Filename
	data.MIMEType = doc.MIMEType
	u.logger.Info("ui.generate.ok",
		"session_id", sess.ID,
		"req_id", res.RequestID,
		"filename", doc.Filename,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	u.renderPage(w, http.StatusOK, "index.html", data)
}

func (u *UI) handleDownload(w http.ResponseWriter, _ *http.Request, sess *Session) {
	doc, ok := sess.Document()
	if !ok {
		http.Error(w, "no document has been generated", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", doc.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Bytes)
}

func (u *UI) renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := u.templates.ExecuteTemplate(w, name, data); err != nil {
		u.logger.Error("ui.template.failed", "template", name, "err", err)
	}
}

func maxRunes(n int) common.ValidationRule {
	return func(field string, value interface{}) *common.ValidationError {
		return common.MaxLength(field, value, n)
	}
}

func recordJSON(rec any) string {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// describeError flattens pipeline failures for display. Category is empty for input errors.
func describeError(err error) *pageError {
	var xe *extract.Error
	var re *render.Error
	switch {
	case errors.As(err, &xe):
		return &pageError{Category: xe.Category.String(), Detail: xe.Detail, Raw: xe.Raw}
	case errors.As(err, &re):
		return &pageError{Category: re.Category.String(), Detail: re.Detail}
	default:
		return &pageError{Detail: err.Error()}
	}
}

// statusFor maps a pipeline failure to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, pipeline.ErrEmptyInput) {
		return http.StatusBadRequest
	}
	var re *render.Error
	if errors.As(err, &re) {
		return http.StatusInternalServerError
	}
	switch extract.CategoryOf(err) {
	case constants.ErrServiceFailure:
		return http.StatusServiceUnavailable
	case constants.ErrEmptyResponse, constants.ErrExtractionFailure, constants.ErrParseFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
