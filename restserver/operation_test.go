// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backupArchive runs a backup to completion and returns the
// downloaded archive.
func (s *testServer) backupArchive(name string) []byte {
	s.t.Helper()
	s.expect(http.StatusAccepted, request{method: http.MethodPost, path: "/v3/container/backups/" + name})
	eventually(s.t, "backup "+name, func() bool {
		return s.do(http.MethodHead, "/v3/container/backups/"+name).Code != http.StatusAccepted
	})
	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/container/backups/" + name})
	return w.Body.Bytes()
}

// restoreUpload builds a multipart restore body.
func restoreUpload(t *testing.T, archive []byte, resources string) (string, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if resources != "" {
		require.NoError(t, mw.WriteField("resources", resources))
	}
	part, err := mw.CreateFormFile("backup", "backup.zip")
	require.NoError(t, err)
	_, err = part.Write(archive)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.String(), mw.FormDataContentType()
}

func (s *testServer) tempDirEmpty() bool {
	files, err := os.ReadDir(s.tempDir)
	require.NoError(s.t, err)
	return len(files) == 0
}

func TestBackupLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.createCache("c", `{"encoding":"text/plain"}`)
	s.put("c", "k", "text/plain", "v")

	gate := make(chan struct{})
	s.backups.Gate = gate
	path := "/v3/container/backups/b1"

	s.expect(http.StatusAccepted, request{method: http.MethodPost, path: path})
	s.expect(http.StatusConflict, request{method: http.MethodPost, path: path})
	s.expect(http.StatusAccepted, request{method: http.MethodGet, path: path})
	s.expect(http.StatusAccepted, request{method: http.MethodHead, path: path})
	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/container/backups"})
	assert.Equal(t, `["b1"]`, w.Body.String())

	close(gate)
	eventually(t, "backup b1", func() bool {
		return s.do(http.MethodHead, path).Code == http.StatusOK
	})

	w = s.expect(http.StatusOK, request{method: http.MethodHead, path: path})
	assert.Empty(t, w.Body.String())

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: path})
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="b1.zip"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	archive := s.backups.BackupPath("b1")
	require.NotEmpty(t, archive)
	s.expect(http.StatusNoContent, request{method: http.MethodDelete, path: path})
	_, err := os.Stat(archive)
	assert.True(t, os.IsNotExist(err))
	s.expect(http.StatusNotFound, request{method: http.MethodGet, path: path})
	s.expect(http.StatusNotFound, request{method: http.MethodDelete, path: path})

	// The v2 paths are the same resource
	s.expect(http.StatusAccepted, request{method: http.MethodPost, path: "/v2/container/backups/b2"})
	eventually(t, "backup b2", func() bool {
		return s.do(http.MethodHead, "/v3/container/backups/b2").Code == http.StatusOK
	})
}

func TestBackupDeferredDelete(t *testing.T) {
	s := newTestServer(t)
	gate := make(chan struct{})
	s.backups.Gate = gate
	path := "/v3/container/backups/b"

	s.expect(http.StatusAccepted, request{method: http.MethodPost, path: path})
	s.expect(http.StatusAccepted, request{method: http.MethodDelete, path: path})
	s.expect(http.StatusAccepted, request{method: http.MethodGet, path: path})
	close(gate)
	eventually(t, "deferred delete", func() bool {
		return s.do(http.MethodGet, path).Code == http.StatusNotFound
	})
	assert.Empty(t, s.backups.BackupNames())
}

func TestBackupFailure(t *testing.T) {
	s := newTestServer(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	path := "/v3/container/backups/b"
	s.expect(http.StatusAccepted, request{
		method: http.MethodPost,
		path:   path,
		body:   `{"directory":"` + blocker + `"}`,
		header: map[string]string{"Content-Type": "application/json"},
	})
	eventually(t, "failed backup", func() bool {
		return s.do(http.MethodGet, path).Code == http.StatusInternalServerError
	})
	w := s.expect(http.StatusInternalServerError, request{method: http.MethodGet, path: path})
	body := errorBody(t, w)
	assert.Equal(t, "backup 'b' failed", body.Message)
	assert.NotEmpty(t, body.Cause)

	s.expect(http.StatusNoContent, request{method: http.MethodDelete, path: path})
	s.expect(http.StatusNotFound, request{method: http.MethodGet, path: path})

	s.expect(http.StatusBadRequest, request{
		method: http.MethodPost,
		path:   "/v3/container/backups/b",
		body:   `{"directory":`,
		header: map[string]string{"Content-Type": "application/json"},
	})
}

func TestRestoreUpload(t *testing.T) {
	source := newTestServer(t)
	source.createCache("c", `{"encoding":"text/plain"}`)
	source.put("c", "k", "text/plain", "restored")
	source.createCache("other", `{}`)
	archive := source.backupArchive("b")

	s := newTestServer(t)
	body, contentType := restoreUpload(t, archive, `{"caches":["c"]}`)
	path := "/v3/container/restores/r"
	s.expect(http.StatusAccepted, request{
		method: http.MethodPost,
		path:   path,
		body:   body,
		header: map[string]string{"Content-Type": contentType},
	})
	eventually(t, "restore", func() bool {
		return s.do(http.MethodHead, path).Code == http.StatusCreated
	})
	eventually(t, "upload removal", s.tempDirEmpty)

	w := s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/entries/k"})
	assert.Equal(t, "restored", w.Body.String())
	s.expect(http.StatusNotFound, request{method: http.MethodHead, path: "/v3/caches/other"})

	w = s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/container/restores"})
	assert.Equal(t, `["r"]`, w.Body.String())
	s.expect(http.StatusConflict, request{
		method: http.MethodPost,
		path:   path,
		body:   body,
		header: map[string]string{"Content-Type": contentType},
	})
	s.expect(http.StatusNoContent, request{method: http.MethodDelete, path: path})
	s.expect(http.StatusNotFound, request{method: http.MethodHead, path: path})
	s.expect(http.StatusNotFound, request{method: http.MethodDelete, path: path})
	assert.True(t, s.tempDirEmpty())
}

func TestRestoreBadArchive(t *testing.T) {
	s := newTestServer(t)
	body, contentType := restoreUpload(t, []byte("not a zip"), "")
	path := "/v3/container/restores/r"
	s.expect(http.StatusAccepted, request{
		method: http.MethodPost,
		path:   path,
		body:   body,
		header: map[string]string{"Content-Type": contentType},
	})
	eventually(t, "failed restore", func() bool {
		return s.do(http.MethodHead, path).Code == http.StatusInternalServerError
	})
	eventually(t, "upload removal", s.tempDirEmpty)
}

func TestRestoreUploadErrors(t *testing.T) {
	s := newTestServer(t)

	// No backup part at all
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("resources", `{}`))
	require.NoError(t, mw.Close())
	w := s.expect(http.StatusBadRequest, request{
		method: http.MethodPost,
		path:   "/v3/container/restores/r",
		body:   buf.String(),
		header: map[string]string{"Content-Type": mw.FormDataContentType()},
	})
	assert.Equal(t, "Missing backup part", errorBody(t, w).Message)

	// Bad resources after the archive was saved
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("backup", "backup.zip")
	require.NoError(t, err)
	_, err = part.Write([]byte("PK"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("resources", `{"caches":`))
	require.NoError(t, mw.Close())
	s.expect(http.StatusBadRequest, request{
		method: http.MethodPost,
		path:   "/v3/container/restores/r",
		body:   buf.String(),
		header: map[string]string{"Content-Type": mw.FormDataContentType()},
	})
	assert.True(t, s.tempDirEmpty())
	s.expect(http.StatusNotFound, request{method: http.MethodHead, path: "/v3/container/restores/r"})
}

func TestRestoreLocation(t *testing.T) {
	source := newTestServer(t)
	source.createCache("c", `{}`)
	source.put("c", "k", "text/plain", "v")
	archive := filepath.Join(t.TempDir(), "b.zip")
	require.NoError(t, os.WriteFile(archive, source.backupArchive("b"), 0o644))

	s := newTestServer(t)
	s.expect(http.StatusBadRequest, request{
		method: http.MethodPost,
		path:   "/v3/container/restores/r",
		body:   `{}`,
		header: map[string]string{"Content-Type": "application/json"},
	})
	s.expect(http.StatusNotFound, request{method: http.MethodHead, path: "/v3/container/restores/r"})

	s.expect(http.StatusAccepted, request{
		method: http.MethodPost,
		path:   "/v2/container/restores/r",
		body:   `{"location":"` + archive + `"}`,
		header: map[string]string{"Content-Type": "application/json"},
	})
	eventually(t, "restore", func() bool {
		return s.do(http.MethodHead, "/v3/container/restores/r").Code == http.StatusCreated
	})
	s.expect(http.StatusOK, request{method: http.MethodGet, path: "/v3/caches/c/entries/k"})

	// Restores read a caller's file but never remove it
	_, err := os.Stat(archive)
	assert.NoError(t, err)
}

func TestNoBackupService(t *testing.T) {
	s := newTestServer(t)
	s.services.Backups = nil
	s.expect(http.StatusNotImplemented, request{method: http.MethodGet, path: "/v3/container/backups"})
	s.expect(http.StatusNotImplemented, request{method: http.MethodPost, path: "/v3/container/restores/r"})
}
