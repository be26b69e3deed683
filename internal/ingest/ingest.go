package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"notecast/internal/logging"
	"notecast/internal/services"
	"notecast/internal/services/retry"
	"notecast/internal/store"
	"notecast/internal/textutil"
)

const (
	// MaxContentBytes bounds uploaded files and fetched pages.
	MaxContentBytes = 10 << 20

	defaultFetchTimeout = 30 * time.Second
	titleLimit          = 80
	userAgent           = "notecast/1.0"
)

// Store persists sources.
type Store interface {
	CreateSource(ctx context.Context, in store.NewSource) (*store.Source, error)
}

// Transformer applies the default transformation to a new source.
type Transformer interface {
	ApplyDefault(ctx context.Context, sourceID string) (*store.Insight, error)
}

// Service ingests content into notebooks.
type Service struct {
	store       Store
	transformer Transformer
	httpClient  *http.Client
	policy      retry.Policy
	logger      *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithTransformer runs the default transformation after every ingestion.
func WithTransformer(t Transformer) Option {
	return func(s *Service) {
		s.transformer = t
	}
}

// WithHTTPClient overrides the client used to fetch web pages.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the fetch retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs an ingestion service.
func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		policy:     retry.DefaultPolicy(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "ingest")
	return s
}

// AddText stores pasted text. A blank title becomes the text's first line.
func (s *Service) AddText(ctx context.Context, notebookID, title, text string) (*store.Source, error) {
	full := textutil.NormalizeText(text)
	if full == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add text", "text is empty", nil)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = textutil.FirstLine(full, titleLimit)
	}
	return s.create(ctx, store.NewSource{
		NotebookID: notebookID,
		Kind:       store.SourceText,
		Title:      title,
		RawContent: text,
		FullText:   full,
	})
}

// AddFile stores the contents of a local text or HTML file as an upload.
// A blank title is derived from the file name.
func (s *Service) AddFile(ctx context.Context, notebookID, path, title string) (*store.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add file", "file path is required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "ingest", "add file", fmt.Sprintf("file %s does not exist", path), nil)
		}
		return nil, services.Wrap(services.ErrValidation, "ingest", "add file", "stat file", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add file", fmt.Sprintf("%s is a directory", path), nil)
	}
	if info.Size() > MaxContentBytes {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add file",
			fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), MaxContentBytes), nil)
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add file", "pdf text extraction is not supported; paste the text instead", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add file", "read file", err)
	}
	if !utf8.Valid(data) {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add file", "file is not UTF-8 text", nil)
	}

	raw := string(data)
	full := raw
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".html" || ext == ".htm" {
		page, err := ExtractPage(raw, nil)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "ingest", "add file", "extract html", err)
		}
		full = page.Text
		if strings.TrimSpace(title) == "" {
			title = page.Title
		}
	}
	full = textutil.NormalizeText(full)
	if full == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add file", "file has no text", nil)
	}
	if title = strings.TrimSpace(title); title == "" {
		title = textutil.TitleFromFileName(path)
	}
	return s.create(ctx, store.NewSource{
		NotebookID: notebookID,
		Kind:       store.SourceUpload,
		Title:      title,
		Location:   filepath.Base(path),
		RawContent: raw,
		FullText:   full,
	})
}

// AddURL fetches a web page and stores its readable text. kind must be
// website or link; empty means website.
func (s *Service) AddURL(ctx context.Context, notebookID, rawURL string, kind store.SourceKind) (*store.Source, error) {
	if kind == "" {
		kind = store.SourceWebsite
	}
	if kind != store.SourceWebsite && kind != store.SourceLink {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add url",
			fmt.Sprintf("%s sources cannot be fetched from a URL", kind), nil)
	}
	pageURL, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, contentType, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	var page Page
	if isHTML(contentType, body) {
		page, err = ExtractPage(body, pageURL)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "ingest", "add url", "extract html", err)
		}
	} else {
		page.Text = body
	}
	full := textutil.NormalizeText(page.Text)
	if full == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add url", fmt.Sprintf("no readable text at %s", pageURL), nil)
	}
	title := textutil.CollapseWhitespace(page.Title)
	if title == "" {
		title = pageURL.Host + pageURL.EscapedPath()
	}
	return s.create(ctx, store.NewSource{
		NotebookID: notebookID,
		Kind:       kind,
		Title:      title,
		Location:   pageURL.String(),
		RawContent: body,
		FullText:   full,
	})
}

func (s *Service) create(ctx context.Context, in store.NewSource) (*store.Source, error) {
	src, err := s.store.CreateSource(ctx, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("source ingested",
		logging.String(logging.FieldSourceID, src.ID),
		logging.String(logging.FieldNotebookID, src.NotebookID),
		logging.String("kind", string(src.Kind)),
		logging.Int("chars", utf8.RuneCountInString(src.FullText)),
		logging.String(logging.FieldEventType, "source_ingested"),
	)
	if s.transformer != nil {
		insight, err := s.transformer.ApplyDefault(ctx, src.ID)
		switch {
		case err != nil:
			logging.WarnWithContext(s.logger, "default transformation failed", "default_transformation_failed",
				logging.String(logging.FieldSourceID, src.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "apply the transformation manually once the provider recovers"),
				logging.String(logging.FieldImpact, "source stored without a default insight"),
			)
		case insight != nil:
			s.logger.Debug("default transformation applied",
				logging.String(logging.FieldSourceID, src.ID),
				logging.String("insight_id", insight.ID),
			)
		}
	}
	return src, nil
}

func (s *Service) fetch(ctx context.Context, pageURL *url.URL) (string, string, error) {
	var body, contentType string
	err := s.policy.Do(ctx, "fetch page", func(int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.1")
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentBytes+1))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return retry.NewStatusError("fetch page", resp, data)
		}
		if len(data) > MaxContentBytes {
			return services.Wrap(services.ErrValidation, "ingest", "fetch page",
				fmt.Sprintf("page exceeds %d bytes", MaxContentBytes), nil)
		}
		body = string(data)
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return "", "", err
		}
		var status *retry.StatusError
		if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
			return "", "", services.Wrap(services.ErrNotFound, "ingest", "fetch page", pageURL.String(), err)
		}
		return "", "", services.Wrap(services.ErrProvider, "ingest", "fetch page", pageURL.String(), err)
	}
	return body, contentType, nil
}

func parseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add url", "url is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, services.Wrap(services.ErrValidation, "ingest", "add url", fmt.Sprintf("invalid url %q", raw), nil)
	}
	return u, nil
}

func isHTML(contentType, body string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "text/html", "application/xhtml+xml":
			return true
		case "text/plain", "text/markdown":
			return false
		}
	}
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.Contains(head, "<html")
}
