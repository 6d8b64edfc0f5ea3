package browse

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/irharvest/internal/database"
	"github.com/nao1215/irharvest/internal/download"
	"github.com/nao1215/irharvest/internal/market"
	"github.com/nao1215/irharvest/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	defaultQuoteTimeout = 5 * time.Second
	shutdownTimeout     = 10 * time.Second
	displayLayout       = "2006-01-02 15:04 MST"
)

// ErrNoRoot is returned when no output root is configured.
var ErrNoRoot = errors.New("output root is required")

// ReportSource provides run history and roster metadata.
type ReportSource interface {
	GetLatestFetchReport(ctx context.Context, company string) (*model.FetchReport, error)
	ListCompanies(ctx context.Context) ([]database.CompanyRow, error)
	ListDownloads(ctx context.Context, company string) ([]model.DownloadRecord, error)
}

// Config holds server configuration.
type Config struct {
	// Root is the output root holding one directory per company.
	Root string

	// Reports is optional. Without it pages show files only.
	Reports ReportSource

	// Quotes is optional. Without it no market data is shown.
	Quotes market.Provider

	// QuoteTimeout bounds a single quote lookup.
	QuoteTimeout time.Duration

	Logger *slog.Logger
}

// Server is the browse UI.
type Server struct {
	root         string
	reports      ReportSource
	quotes       market.Provider
	quoteTimeout time.Duration
	logger       *slog.Logger
	templates    *template.Template
	mux          *http.ServeMux
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Root == "" {
		return nil, ErrNoRoot
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		root:         cfg.Root,
		reports:      cfg.Reports,
		quotes:       cfg.Quotes,
		quoteTimeout: cfg.QuoteTimeout,
		logger:       cfg.Logger,
		templates:    tmpl,
	}
	if s.quoteTimeout <= 0 {
		s.quoteTimeout = defaultQuoteTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /c/{company}", s.handleCompany)
	mux.HandleFunc("GET /data/{company}/{file}", s.handleFile)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux = mux

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("browse server listening", "addr", addr, "root", s.root)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down browse server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

type companyItem struct {
	Dir    string
	Title  string
	Status model.RunStatus
}

type indexPage struct {
	Title     string
	Companies []companyItem
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	dirs, err := download.ListCompanies(s.root)
	if err != nil {
		s.serverError(w, "failed to list companies", err)
		return
	}

	names := s.rosterNames(r.Context())
	page := indexPage{Title: "Fintech Companies", Companies: make([]companyItem, 0, len(dirs))}
	for _, dir := range dirs {
		item := companyItem{Dir: dir, Title: s.displayTitle(dir)}
		if name, ok := names[dir]; ok {
			item.Title = name
			if rep := s.latestReport(r.Context(), name); rep != nil {
				item.Status = rep.Status()
			}
		}
		page.Companies = append(page.Companies, item)
	}

	s.render(w, "index.html", page)
}

// Page states of the latest run.
const (
	stateNever   = "never"
	stateOK      = string(model.RunOK)
	statePartial = string(model.RunPartial)
	stateFailed  = string(model.RunFailed)
)

type fileItem struct {
	Name    string
	Size    string
	ModTime string
	Source  string
}

type quoteView struct {
	Price     string
	Currency  string
	MarketCap string
	Source    string
	AsOf      string
}

type companyPage struct {
	Title     string
	Dir       string
	Ticker    string
	Quote     *quoteView
	State     string
	LastRun   string
	LastError string
	Files     []fileItem
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	dir := r.PathValue("company")
	if dir == "" || strings.HasPrefix(dir, ".") || strings.ContainsAny(dir, `/\`) {
		http.NotFound(w, r)
		return
	}

	row := s.rosterCompany(r.Context(), dir)
	companyDir := filepath.Join(s.root, dir)
	if row == nil && !isDir(companyDir) {
		http.NotFound(w, r)
		return
	}

	docs, err := download.ListDocuments(companyDir)
	if err != nil {
		s.serverError(w, "failed to list documents", err)
		return
	}

	page := companyPage{
		Title: s.displayTitle(dir),
		Dir:   dir,
		State: stateNever,
		Files: make([]fileItem, len(docs)),
	}
	for i, d := range docs {
		page.Files[i] = fileItem{
			Name:    d.Name,
			Size:    formatSize(d.Size),
			ModTime: d.ModTime.Format(displayLayout),
		}
	}

	if row != nil {
		page.Title = row.Name
		page.Ticker = row.Ticker
		sources := s.downloadSources(r.Context(), row.Name)
		for i := range page.Files {
			page.Files[i].Source = sources[page.Files[i].Name]
		}
		if rep := s.latestReport(r.Context(), row.Name); rep != nil {
			page.State = string(rep.Status())
			page.LastRun = rep.StartedAt.Local().Format(displayLayout)
			if rep.Failed() && len(rep.Errors) > 0 {
				e := rep.Errors[0]
				page.LastError = string(e.Kind) + ": " + e.Message
			}
		}
		if row.Ticker != "" {
			page.Quote = s.lookupQuote(r.Context(), row.Ticker)
		}
	}

	s.render(w, "company.html", page)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path, ok := download.Resolve(s.root, r.PathValue("company"), r.PathValue("file"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// rosterNames maps company directory names to roster names.
func (s *Server) rosterNames(ctx context.Context) map[string]string {
	names := map[string]string{}
	if s.reports == nil {
		return names
	}
	rows, err := s.reports.ListCompanies(ctx)
	if err != nil {
		s.logger.Warn("failed to load roster companies", "error", err)
		return names
	}
	for _, row := range rows {
		names[download.CompanyDirName(row.Name)] = row.Name
	}
	return names
}

// rosterCompany finds the roster entry stored under dir, or nil.
func (s *Server) rosterCompany(ctx context.Context, dir string) *database.CompanyRow {
	if s.reports == nil {
		return nil
	}
	rows, err := s.reports.ListCompanies(ctx)
	if err != nil {
		s.logger.Warn("failed to load roster companies", "error", err)
		return nil
	}
	for i := range rows {
		if download.CompanyDirName(rows[i].Name) == dir {
			return &rows[i]
		}
	}
	return nil
}

// downloadSources maps stored filenames to the URL they were downloaded from.
func (s *Server) downloadSources(ctx context.Context, company string) map[string]string {
	sources := map[string]string{}
	records, err := s.reports.ListDownloads(ctx, company)
	if err != nil {
		s.logger.Warn("failed to load download records", "company", company, "error", err)
		return sources
	}
	for _, rec := range records {
		sources[rec.Filename] = rec.SourceURL
	}
	return sources
}

func (s *Server) latestReport(ctx context.Context, company string) *model.FetchReport {
	if s.reports == nil {
		return nil
	}
	rep, err := s.reports.GetLatestFetchReport(ctx, company)
	if err != nil {
		s.logger.Warn("failed to load latest report", "company", company, "error", err)
		return nil
	}
	return rep
}

// lookupQuote returns nil when the quote is unavailable.
func (s *Server) lookupQuote(ctx context.Context, ticker string) *quoteView {
	if s.quotes == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.quoteTimeout)
	defer cancel()

	q, err := s.quotes.Quote(ctx, ticker)
	if err != nil {
		s.logger.Warn("market data unavailable", "ticker", ticker, "provider", s.quotes.Name(), "error", err)
		return nil
	}

	view := &quoteView{
		Price:    q.Price.StringFixed(2),
		Currency: q.Currency,
		Source:   q.Source,
		AsOf:     q.AsOf.Local().Format(displayLayout),
	}
	if q.HasMarketCap() {
		view.MarketCap = formatMarketCap(q)
	}
	return view
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render page", "template", name, "error", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// displayTitle turns a directory name into a heading: underscores become
// spaces and words are title-cased. Casers are stateful, so each call
// gets its own.
func (s *Server) displayTitle(dir string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(dir, "_", " "))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
