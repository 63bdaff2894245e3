// Package drive talks to the Google Drive v3 REST API. Slash paths are
// resolved component by component from a configured root folder, so the
// rest of the assistant never sees Drive file IDs.
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sipeed/driveclaw/pkg/config"
)

const folderMIMEType = "application/vnd.google-apps.folder"

var (
	ErrNotFound   = errors.New("no such file or folder")
	ErrNotAFolder = errors.New("not a folder")
)

// Entry is one listed file or folder.
type Entry struct {
	Name     string
	Size     int64
	IsFolder bool
}

// Client is a Drive API client scoped to one root folder.
type Client struct {
	baseURL string
	root    string
	http    *http.Client
}

// Option overrides client internals, mainly for tests.
type Option func(*Client)

// WithHTTPClient replaces the oauth2-backed HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func NewClient(cfg config.DriveConfig, opts ...Option) *Client {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{"https://www.googleapis.com/auth/drive"},
	}

	ts := oauthCfg.TokenSource(context.Background(), &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	})

	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = cfg.Timeout()

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		root:    cfg.RootFolderID,
		http:    httpClient,
	}
	if c.root == "" {
		c.root = "root"
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     string `json:"size"`
}

func (f driveFile) isFolder() bool {
	return f.MIMEType == folderMIMEType
}

func (f driveFile) byteSize() int64 {
	n, _ := strconv.ParseInt(f.Size, 10, 64)
	return n
}

type fileList struct {
	Files []driveFile `json:"files"`
}

// List returns the entries under the folder at path, folders first, then
// by name.
func (c *Client) List(ctx context.Context, path string) ([]Entry, error) {
	folder, err := c.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if !folder.isFolder() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotAFolder)
	}

	files, err := c.children(ctx, folder.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, Entry{
			Name:     f.Name,
			Size:     f.byteSize(),
			IsFolder: f.isFolder(),
		})
	}
	return entries, nil
}

// Delete removes the file at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	file, err := c.resolve(ctx, path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/files/"+url.PathEscape(file.ID), nil)
	if err != nil {
		return err
	}
	return c.doDiscard(req)
}

// Move reparents the file at src into the folder at dst.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	file, err := c.resolve(ctx, src)
	if err != nil {
		return err
	}
	folder, err := c.resolve(ctx, dst)
	if err != nil {
		return err
	}
	if !folder.isFolder() {
		return fmt.Errorf("%s: %w", dst, ErrNotAFolder)
	}

	oldParent, err := c.parentOf(ctx, file.ID)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("addParents", folder.ID)
	if oldParent != "" {
		q.Set("removeParents", oldParent)
	}
	endpoint := c.baseURL + "/files/" + url.PathEscape(file.ID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, strings.NewReader("{}"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doDiscard(req)
}

// Stat returns the entry at path.
func (c *Client) Stat(ctx context.Context, path string) (Entry, error) {
	file, err := c.resolve(ctx, path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: file.Name, Size: file.byteSize(), IsFolder: file.isFolder()}, nil
}

// Fetch downloads the content of the file at path. Files larger than limit
// are rejected before any download.
func (c *Client) Fetch(ctx context.Context, path string, limit int64) ([]byte, error) {
	file, err := c.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if file.isFolder() {
		return nil, fmt.Errorf("%s is a folder, not a file", path)
	}
	// Google-native documents have no downloadable byte content.
	if strings.HasPrefix(file.MIMEType, "application/vnd.google-apps.") {
		return nil, fmt.Errorf("%s is a Google document (%s) with no downloadable content", path, file.MIMEType)
	}
	if limit > 0 && file.byteSize() > limit {
		return nil, fmt.Errorf("%s is %d bytes, above the %d byte limit", path, file.byteSize(), limit)
	}

	endpoint := c.baseURL + "/files/" + url.PathEscape(file.ID) + "?alt=media"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	reader := io.Reader(resp.Body)
	if limit > 0 {
		reader = io.LimitReader(reader, limit)
	}
	return io.ReadAll(reader)
}

// resolve walks path from the root folder, matching each component by name.
// The first name match wins, as in the Drive web UI search.
func (c *Client) resolve(ctx context.Context, path string) (driveFile, error) {
	current := driveFile{ID: c.root, MIMEType: folderMIMEType, Name: "/"}

	for _, segment := range splitPath(path) {
		next, err := c.childByName(ctx, current.ID, segment)
		if err != nil {
			return driveFile{}, err
		}
		if next == nil {
			return driveFile{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		current = *next
	}
	return current, nil
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func (c *Client) childByName(ctx context.Context, parentID, name string) (*driveFile, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), escapeQuery(parentID))

	files, err := c.listFiles(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

func (c *Client) children(ctx context.Context, folderID string) ([]driveFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))
	return c.listFiles(ctx, query, 0)
}

func (c *Client) listFiles(ctx context.Context, query string, pageSize int) ([]driveFile, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("fields", "files(id,name,mimeType,size)")
	q.Set("orderBy", "folder,name")
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var list fileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode file list: %w", err)
	}
	return list.Files, nil
}

func (c *Client) parentOf(ctx context.Context, fileID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/files/"+url.PathEscape(fileID)+"?fields=parents", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var out struct {
		Parents []string `json:"parents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Parents) == 0 {
		return "", nil
	}
	return out.Parents[0], nil
}

func (c *Client) doDiscard(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("drive API: %s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("drive API: status %d: %s", resp.StatusCode, msg)
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
