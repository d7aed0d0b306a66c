package main

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"sqlchat/internal/agent"
	"sqlchat/internal/chart"
	"sqlchat/internal/chat"
	"sqlchat/internal/database"
)

//go:embed templates
var templateFS embed.FS

const securityNote = "Building Q&A systems of SQL databases requires executing model-generated SQL queries. " +
	"There are inherent risks in doing this. Make sure that your database connection permissions are always " +
	"scoped as narrowly as possible for your agent's needs."

// WebHandler handles HTMX HTML requests
type WebHandler struct {
	Loop        *chat.Loop
	Suggestions []string
	templates   *template.Template
	markdown    goldmark.Markdown
}

// turnView is a transcript turn prepared for the templates
type turnView struct {
	Role    string
	HTML    template.HTML
	ChartID string
	Steps   []string
}

// sidebarView is the database selection panel
type sidebarView struct {
	Mode         string
	URI          string
	Display      string
	Tables       []string
	Error        string
	SecurityNote string
}

// NewWebHandler creates a new WebHandler with parsed templates
func NewWebHandler(loop *chat.Loop, suggestions []string) (*WebHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	return &WebHandler{
		Loop:        loop,
		Suggestions: suggestions,
		templates:   tmpl,
		markdown:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}, nil
}

// LandingPage renders the landing page
func (h *WebHandler) LandingPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "landing.html", map[string]interface{}{
		"Title": "sqlchat",
	})
}

// ChatPage renders the chat page with the transcript and the sidebar
func (h *WebHandler) ChatPage(w http.ResponseWriter, r *http.Request) {
	s, _ := chat.FromContext(r.Context())

	data := map[string]interface{}{
		"Title":       "Chat with your SQL database",
		"Turns":       h.turnViews(s.Transcript()),
		"Suggestions": h.Suggestions,
		"Sidebar":     h.sidebar(r.Context(), s),
		"DevMode":     h.Loop.DevMode(),
	}
	h.render(w, "chat.html", data)
}

// SendMessage runs one utterance and returns the transcript partial
func (h *WebHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	s, _ := chat.FromContext(r.Context())

	_, err := h.Loop.Submit(r.Context(), s, r.FormValue("content"))
	data := map[string]interface{}{}
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrBusy):
		http.Error(w, "Still answering the previous question", http.StatusConflict)
		return
	case errors.Is(err, chat.ErrEmptyInput):
		data["Error"] = "Please type a question first."
	case database.IsConnectionError(err):
		data["Error"] = err.Error()
	case agent.IsAuthenticationError(err):
		data["Error"] = err.Error()
	default:
		var cfgErr *agent.ConfigError
		if errors.As(err, &cfgErr) {
			data["Error"] = cfgErr.Error() + ". Set the API key in the server environment."
		}
		// Agent failures are already part of the transcript.
		slog.Warn("Message failed", "session_id", s.ID, "error", err)
	}

	data["Turns"] = h.turnViews(s.Transcript())
	h.render(w, "turns.html", data)
}

// SelectDatabase switches the session's database and returns the sidebar partial
func (h *WebHandler) SelectDatabase(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	s, _ := chat.FromContext(r.Context())

	mode, err := database.ParseMode(r.FormValue("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sel := database.Sample()
	if mode == database.ModeCustomURI {
		sel = database.CustomURI(r.FormValue("uri"))
	}
	s.SetSelection(sel)

	h.render(w, "sidebar.html", h.sidebar(r.Context(), s))
}

// Reset clears the conversation and returns the transcript partial
func (h *WebHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s, _ := chat.FromContext(r.Context())
	s.Reset()
	h.render(w, "turns.html", map[string]interface{}{
		"Turns": h.turnViews(s.Transcript()),
	})
}

// Chart renders a figure from the transcript as a standalone page
func (h *WebHandler) Chart(w http.ResponseWriter, r *http.Request) {
	s, _ := chat.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	fig := findFigure(s.Transcript(), id)
	if fig == nil {
		http.NotFound(w, r)
		return
	}

	var buf bytes.Buffer
	if err := chart.RenderHTML(&buf, fig); err != nil {
		slog.Error("Chart render failed", "chart_id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (h *WebHandler) sidebar(ctx context.Context, s *chat.Session) sidebarView {
	sel := s.Selection()
	view := sidebarView{
		Mode:         string(sel.Mode),
		URI:          sel.URI,
		SecurityNote: securityNote,
	}
	if view.Mode == "" {
		view.Mode = string(database.ModeSample)
	}

	handle, err := s.Handle(ctx)
	if err != nil {
		view.Error = err.Error()
		return view
	}
	view.Display = handle.String()
	tables, err := handle.TableNames(ctx)
	if err != nil {
		view.Error = err.Error()
		return view
	}
	view.Tables = tables
	return view
}

func (h *WebHandler) turnViews(turns []chat.Turn) []turnView {
	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		v := turnView{Role: string(t.Role), Steps: t.Steps}
		if t.Role == chat.RoleAssistant {
			v.HTML = h.renderMarkdown(t.Content)
		} else {
			v.HTML = template.HTML(template.HTMLEscapeString(t.Content))
		}
		if t.Chart != nil {
			v.ChartID = t.Chart.ID
		}
		views = append(views, v)
	}
	return views
}

// renderMarkdown converts assistant markdown to HTML. Raw HTML in the source
// is dropped by goldmark's default renderer.
func (h *WebHandler) renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(content), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}
	return template.HTML(buf.String())
}

func (h *WebHandler) render(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template error", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func findFigure(turns []chat.Turn, id string) *chart.Figure {
	for _, t := range turns {
		if t.Chart != nil && t.Chart.ID == id {
			return t.Chart
		}
	}
	return nil
}
