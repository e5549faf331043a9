package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptkit/internal/components"
	"promptkit/internal/render"
	"promptkit/internal/storage"
	"promptkit/internal/tokenizer"
)

func setupRenderHandler(t *testing.T, withDB bool) *mux.Router {
	t.Helper()

	var db *storage.DB
	var journal JournalFunc
	if withDB {
		var err error
		db, err = storage.Open(filepath.Join(t.TempDir(), "renders.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		journal = func(res render.Result, path string) {
			require.NoError(t, db.SaveRender(storage.NewRenderRecord(res, storage.OriginServer, path)))
		}
	}

	router := mux.NewRouter()
	h := NewRenderHandler(tokenizer.NewApprox(), render.DefaultOptions(256), tokenizer.CharsPerToken, db, journal)
	h.RegisterRoutes(router)
	return router
}

func post(t *testing.T, router http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/render", bytes.NewReader(data))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleRender(t *testing.T) {
	router := setupRenderHandler(t, false)

	doc := "package main\n\nfunc main() {\n\t\n}\n"
	w := post(t, router, RenderRequest{
		CompletionRequest: components.CompletionRequest{
			Document: doc,
			Offset:   len("package main\n\nfunc main() {\n\t"),
			Path:     "main.go",
		},
		Snippets: []components.Snippet{{Path: "util.go", Text: "func helper() {}\n"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RenderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, render.StatusOK, resp.Status)
	assert.Contains(t, resp.Prefix, "Path: main.go")
	assert.Contains(t, resp.Prefix, "func helper() {}")
	assert.True(t, len(resp.Prefix) > 0 && resp.Prefix[len(resp.Prefix)-1] == '\t', "prefix ends at the cursor")
	assert.Equal(t, "}\n", resp.Suffix)
	assert.NotEmpty(t, resp.Metadata.RenderID)
	assert.Empty(t, resp.Error)
}

func TestHandleRender_Overrides(t *testing.T) {
	router := setupRenderHandler(t, false)

	split := true
	w := post(t, router, RenderRequest{
		CompletionRequest: components.CompletionRequest{Document: "x := 1\n", Offset: 7, Path: "a.go"},
		Options:           &RenderOverrides{SplitContext: &split},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RenderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "x := 1\n", resp.Prefix)
	assert.NotEmpty(t, resp.Context)
}

func TestHandleRender_BadRequests(t *testing.T) {
	router := setupRenderHandler(t, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/render", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, router, RenderRequest{
		CompletionRequest: components.CompletionRequest{Document: "abc", Offset: 9},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	percent := 150
	w = post(t, router, RenderRequest{
		CompletionRequest: components.CompletionRequest{Document: "abc", Offset: 3},
		Options:           &RenderOverrides{SuffixPercent: &percent},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeRenderFailed, resp.Error.Code)
}

func TestHandleRenders_Journal(t *testing.T) {
	router := setupRenderHandler(t, true)

	w := post(t, router, RenderRequest{
		CompletionRequest: components.CompletionRequest{Document: "abc\n", Offset: 4, Path: "a.txt"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var rendered RenderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rendered))

	req := httptest.NewRequest(http.MethodGet, "/v1/renders?limit=5", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Renders []storage.RenderRecord `json:"renders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Renders, 1)
	assert.Equal(t, rendered.Metadata.RenderID, list.Renders[0].ID)
	assert.Equal(t, "a.txt", list.Renders[0].DocumentPath)

	req = httptest.NewRequest(http.MethodGet, "/v1/renders/"+rendered.Metadata.RenderID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/renders/missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/renders?limit=zero", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRenders_JournalDisabled(t *testing.T) {
	router := setupRenderHandler(t, false)

	for _, path := range []string{"/v1/renders", "/v1/renders/abc"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}
