package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"notecast/internal/api"
	"notecast/internal/services"
	"notecast/internal/store"
)

// ErrUnavailable reports that no daemon API is configured or reachable.
var ErrUnavailable = errors.New("notecast daemon API unavailable")

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.Status)
	}
	return e.Message
}

// Unwrap maps the response code onto the matching services marker.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "validation":
		return services.ErrValidation
	case "not_found":
		return services.ErrNotFound
	case "chunking":
		return services.ErrChunking
	case "configuration":
		return services.ErrConfiguration
	case "timeout":
		return services.ErrTimeout
	case "provider":
		return services.ErrProvider
	}
	return nil
}

// Client calls the daemon HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// New returns a client for the daemon listening on bind ("host:port" or a URL).
// An empty bind yields ErrUnavailable.
func New(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// No client timeout; long-poll calls bound themselves by context.
		http: &http.Client{},
	}, nil
}

// BaseURL returns the daemon root URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func (c *Client) endpoint(path string, query url.Values) string {
	ref := &url.URL{Path: path}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var payload api.ErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var out api.DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (bool, string, error) {
	var out struct {
		Sent    bool   `json:"sent"`
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil, &out)
	return out.Sent, out.Message, err
}

// ListNotebooks returns every notebook.
func (c *Client) ListNotebooks(ctx context.Context) ([]api.Notebook, error) {
	var out api.NotebookListResponse
	err := c.do(ctx, http.MethodGet, "/api/notebooks", nil, nil, &out)
	return out.Notebooks, err
}

// CreateNotebook creates a notebook.
func (c *Client) CreateNotebook(ctx context.Context, name, description string) (api.Notebook, error) {
	var out api.Notebook
	err := c.do(ctx, http.MethodPost, "/api/notebooks", nil, api.CreateNotebookRequest{Name: name, Description: description}, &out)
	return out, err
}

// GetNotebook fetches one notebook.
func (c *Client) GetNotebook(ctx context.Context, id string) (api.Notebook, error) {
	var out api.Notebook
	err := c.do(ctx, http.MethodGet, "/api/notebooks/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// UpdateNotebook renames or redescribes a notebook.
func (c *Client) UpdateNotebook(ctx context.Context, id, name, description string) (api.Notebook, error) {
	var out api.Notebook
	err := c.do(ctx, http.MethodPut, "/api/notebooks/"+url.PathEscape(id), nil, api.CreateNotebookRequest{Name: name, Description: description}, &out)
	return out, err
}

// DeleteNotebook removes a notebook with its content and episodes.
func (c *Client) DeleteNotebook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notebooks/"+url.PathEscape(id), nil, nil, nil)
}

// ListSources returns a notebook's sources without full text.
func (c *Client) ListSources(ctx context.Context, notebookID string) ([]api.Source, error) {
	var out api.SourceListResponse
	err := c.do(ctx, http.MethodGet, "/api/notebooks/"+url.PathEscape(notebookID)+"/sources", nil, nil, &out)
	return out.Sources, err
}

// AddSource ingests text, a URL, or a local file into a notebook.
func (c *Client) AddSource(ctx context.Context, notebookID string, req api.AddSourceRequest) (api.Source, error) {
	if req.Kind == string(store.SourceUpload) && req.Path != "" {
		if abs, err := filepath.Abs(req.Path); err == nil {
			req.Path = abs
		}
	}
	var out api.Source
	err := c.do(ctx, http.MethodPost, "/api/notebooks/"+url.PathEscape(notebookID)+"/sources", nil, req, &out)
	return out, err
}

// GetSource fetches one source including its full text.
func (c *Client) GetSource(ctx context.Context, id string) (api.Source, error) {
	var out api.Source
	err := c.do(ctx, http.MethodGet, "/api/sources/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// DeleteSource removes a source and its insights.
func (c *Client) DeleteSource(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/sources/"+url.PathEscape(id), nil, nil, nil)
}

// ListNotes returns a notebook's notes.
func (c *Client) ListNotes(ctx context.Context, notebookID string) ([]api.Note, error) {
	var out api.NoteListResponse
	err := c.do(ctx, http.MethodGet, "/api/notebooks/"+url.PathEscape(notebookID)+"/notes", nil, nil, &out)
	return out.Notes, err
}

// CreateNote adds a note to a notebook.
func (c *Client) CreateNote(ctx context.Context, notebookID, title, content string) (api.Note, error) {
	var out api.Note
	err := c.do(ctx, http.MethodPost, "/api/notebooks/"+url.PathEscape(notebookID)+"/notes", nil,
		api.CreateNoteRequest{Title: title, Content: content}, &out)
	return out, err
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(id), nil, nil, nil)
}

// ListInsights returns a source's insights.
func (c *Client) ListInsights(ctx context.Context, sourceID string) ([]api.Insight, error) {
	var out api.InsightListResponse
	err := c.do(ctx, http.MethodGet, "/api/sources/"+url.PathEscape(sourceID)+"/insights", nil, nil, &out)
	return out.Insights, err
}

// ApplyTransformation runs a transformation against a source. An empty name
// applies the default transformation.
func (c *Client) ApplyTransformation(ctx context.Context, sourceID, name string) (api.Insight, error) {
	var out api.Insight
	err := c.do(ctx, http.MethodPost, "/api/sources/"+url.PathEscape(sourceID)+"/insights", nil,
		api.ApplyTransformationRequest{Transformation: name}, &out)
	return out, err
}

// DeleteInsight removes an insight.
func (c *Client) DeleteInsight(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/insights/"+url.PathEscape(id), nil, nil, nil)
}

// ListTransformations returns the transformation catalog.
func (c *Client) ListTransformations(ctx context.Context) ([]api.Transformation, error) {
	var out api.TransformationListResponse
	err := c.do(ctx, http.MethodGet, "/api/transformations", nil, nil, &out)
	return out.Transformations, err
}

// CreateTransformation adds a transformation.
func (c *Client) CreateTransformation(ctx context.Context, req api.TransformationRequest) (api.Transformation, error) {
	var out api.Transformation
	err := c.do(ctx, http.MethodPost, "/api/transformations", nil, req, &out)
	return out, err
}

// UpdateTransformation replaces a transformation's fields.
func (c *Client) UpdateTransformation(ctx context.Context, id string, req api.TransformationRequest) (api.Transformation, error) {
	var out api.Transformation
	err := c.do(ctx, http.MethodPut, "/api/transformations/"+url.PathEscape(id), nil, req, &out)
	return out, err
}

// DeleteTransformation removes a transformation.
func (c *Client) DeleteTransformation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/transformations/"+url.PathEscape(id), nil, nil, nil)
}

// SetDefaultTransformation makes id the default transformation.
func (c *Client) SetDefaultTransformation(ctx context.Context, id string) (api.Transformation, error) {
	var out api.Transformation
	err := c.do(ctx, http.MethodPost, "/api/transformations/"+url.PathEscape(id)+"/default", nil, nil, &out)
	return out, err
}

// UnsetDefaultTransformation clears the default, reporting whether one was set.
func (c *Client) UnsetDefaultTransformation(ctx context.Context) (bool, error) {
	var out api.UnsetDefaultResponse
	err := c.do(ctx, http.MethodDelete, "/api/transformations/default", nil, nil, &out)
	return out.Cleared, err
}

// ListTemplates returns the episode template catalog.
func (c *Client) ListTemplates(ctx context.Context) ([]store.EpisodeTemplate, error) {
	var out api.TemplateListResponse
	err := c.do(ctx, http.MethodGet, "/api/templates", nil, nil, &out)
	return out.Templates, err
}

// GetTemplate fetches one template by name.
func (c *Client) GetTemplate(ctx context.Context, name string) (store.EpisodeTemplate, error) {
	var out store.EpisodeTemplate
	err := c.do(ctx, http.MethodGet, "/api/templates/"+url.PathEscape(name), nil, nil, &out)
	return out, err
}

// ImportTemplates uploads a TOML document of templates.
func (c *Client) ImportTemplates(ctx context.Context, data []byte) ([]store.EpisodeTemplate, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/templates/import", nil, bytes.NewReader(data), "application/toml")
	if err != nil {
		return nil, err
	}
	var out api.TemplateListResponse
	err = c.send(req, &out)
	return out.Templates, err
}

// DeleteTemplate removes a template.
func (c *Client) DeleteTemplate(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/templates/"+url.PathEscape(name), nil, nil, nil)
}

// RequestEpisode asks the daemon to generate an episode from a notebook.
func (c *Client) RequestEpisode(ctx context.Context, notebookID string, req api.EpisodeRequest) (api.Episode, error) {
	var out api.EpisodeResponse
	err := c.do(ctx, http.MethodPost, "/api/notebooks/"+url.PathEscape(notebookID)+"/episodes", nil, req, &out)
	return out.Episode, err
}

// ListEpisodes returns a notebook's episodes, or every episode when
// notebookID is empty.
func (c *Client) ListEpisodes(ctx context.Context, notebookID string) ([]api.Episode, error) {
	path := "/api/episodes"
	if notebookID != "" {
		path = "/api/notebooks/" + url.PathEscape(notebookID) + "/episodes"
	}
	var out api.EpisodeListResponse
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out.Episodes, err
}

// GetEpisode fetches one episode.
func (c *Client) GetEpisode(ctx context.Context, id string) (api.Episode, error) {
	var out api.EpisodeResponse
	err := c.do(ctx, http.MethodGet, "/api/episodes/"+url.PathEscape(id), nil, nil, &out)
	return out.Episode, err
}

// WaitEpisode long-polls until the episode is terminal or timeout passes and
// returns the latest snapshot.
func (c *Client) WaitEpisode(ctx context.Context, id string, timeout time.Duration) (api.Episode, error) {
	query := url.Values{}
	if timeout > 0 {
		query.Set("timeout", timeout.String())
	}
	var out api.EpisodeResponse
	err := c.do(ctx, http.MethodGet, "/api/episodes/"+url.PathEscape(id)+"/wait", query, nil, &out)
	return out.Episode, err
}

// DeleteEpisode removes a terminal episode and its audio.
func (c *Client) DeleteEpisode(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/episodes/"+url.PathEscape(id), nil, nil, nil)
}

// DownloadAudio streams a completed episode's WAV file into w and returns the
// number of bytes written.
func (c *Client) DownloadAudio(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, api.EpisodeAudioPath(id), nil, nil, "")
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "audio/wav")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}
