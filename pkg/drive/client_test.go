package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sipeed/driveclaw/pkg/config"
)

// fakeDrive serves a minimal subset of the Drive v3 files API backed by a
// static tree: /reports (folder) containing q3.pdf and notes.txt, plus
// /archive (folder).
type fakeDrive struct {
	deleted []string
	patched []string
}

func (f *fakeDrive) handler() http.Handler {
	type file struct {
		id, name, parent, mime, size string
	}
	files := []file{
		{"id-reports", "reports", "root", folderMIMEType, ""},
		{"id-archive", "archive", "root", folderMIMEType, ""},
		{"id-q3", "q3.pdf", "id-reports", "application/pdf", "2048"},
		{"id-notes", "notes.txt", "id-reports", "text/plain", "11"},
		{"id-doc", "plan", "id-reports", "application/vnd.google-apps.document", ""},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		var out []map[string]any
		for _, fl := range files {
			if !strings.Contains(q, fmt.Sprintf("'%s' in parents", fl.parent)) {
				continue
			}
			if strings.Contains(q, "name = ") && !strings.Contains(q, fmt.Sprintf("name = '%s'", fl.name)) {
				continue
			}
			entry := map[string]any{"id": fl.id, "name": fl.name, "mimeType": fl.mime}
			if fl.size != "" {
				entry["size"] = fl.size
			}
			out = append(out, entry)
		}
		json.NewEncoder(w).Encode(map[string]any{"files": out})
	})
	mux.HandleFunc("GET /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if r.URL.Query().Get("alt") == "media" {
			if id == "id-notes" {
				fmt.Fprint(w, "hello notes")
				return
			}
			http.NotFound(w, r)
			return
		}
		for _, fl := range files {
			if fl.id == id {
				json.NewEncoder(w).Encode(map[string]any{"parents": []string{fl.parent}})
				return
			}
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("DELETE /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.deleted = append(f.deleted, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("PATCH /files/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.patched = append(f.patched, r.PathValue("id")+"?"+r.URL.RawQuery)
		fmt.Fprint(w, "{}")
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeDrive) {
	t.Helper()
	fake := &fakeDrive{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := NewClient(config.DriveConfig{
		BaseURL:      srv.URL,
		RootFolderID: "root",
	}, WithHTTPClient(srv.Client()))
	return client, fake
}

func TestListFolder(t *testing.T) {
	client, _ := newTestClient(t)

	entries, err := client.List(context.Background(), "/reports")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() = %d entries, want 3", len(entries))
	}
	if entries[0].Name != "q3.pdf" || entries[0].Size != 2048 || entries[0].IsFolder {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestListRoot(t *testing.T) {
	client, _ := newTestClient(t)

	entries, err := client.List(context.Background(), "/")
	if err != nil {
		t.Fatalf("List(/) error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List(/) = %d entries, want 2", len(entries))
	}
}

func TestListMissingPath(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.List(context.Background(), "/nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("List(/nope) error = %v, want ErrNotFound", err)
	}
}

func TestListFileIsNotAFolder(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.List(context.Background(), "/reports/q3.pdf")
	if !errors.Is(err, ErrNotAFolder) {
		t.Fatalf("List(file) error = %v, want ErrNotAFolder", err)
	}
}

func TestDeleteResolvesPath(t *testing.T) {
	client, fake := newTestClient(t)

	if err := client.Delete(context.Background(), "/reports/q3.pdf"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "id-q3" {
		t.Fatalf("deleted = %v, want [id-q3]", fake.deleted)
	}
}

func TestMoveReparentsFile(t *testing.T) {
	client, fake := newTestClient(t)

	if err := client.Move(context.Background(), "/reports/q3.pdf", "/archive"); err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	if len(fake.patched) != 1 {
		t.Fatalf("patched = %v, want one call", fake.patched)
	}
	if !strings.Contains(fake.patched[0], "addParents=id-archive") ||
		!strings.Contains(fake.patched[0], "removeParents=id-reports") {
		t.Fatalf("unexpected patch: %s", fake.patched[0])
	}
}

func TestFetchRespectsSizeLimit(t *testing.T) {
	client, _ := newTestClient(t)

	data, err := client.Fetch(context.Background(), "/reports/notes.txt", 1024)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(data) != "hello notes" {
		t.Fatalf("Fetch() = %q", data)
	}

	_, err = client.Fetch(context.Background(), "/reports/q3.pdf", 100)
	if err == nil || !strings.Contains(err.Error(), "byte limit") {
		t.Fatalf("Fetch(oversized) error = %v, want size limit rejection", err)
	}
}

func TestFetchRejectsGoogleDoc(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Fetch(context.Background(), "/reports/plan", 1024)
	if err == nil || !strings.Contains(err.Error(), "Google document") {
		t.Fatalf("Fetch(doc) error = %v, want Google document rejection", err)
	}
}

func TestStat(t *testing.T) {
	client, _ := newTestClient(t)

	entry, err := client.Stat(context.Background(), "/reports")
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if !entry.IsFolder || entry.Name != "reports" {
		t.Fatalf("Stat() = %+v", entry)
	}
}
