package storage_test

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/huddle/internal/domain"
	"github.com/nfrund/huddle/internal/storage"
)

type fakeIndex map[int64]*domain.FilePayload

func (f fakeIndex) FindFile(id int64) (*domain.FilePayload, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, &domain.NotFoundError{MessageID: id}
}

func serve(t *testing.T, h *storage.FileHandler, id string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/files/"+id, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return rec, h.Download(c)
}

func TestFileHandler_Download(t *testing.T) {
	store := storage.NewAferoStore(afero.NewMemMapFs())
	_, err := store.Save(context.Background(), storage.FilePath(5), bytes.NewReader([]byte("payload")))
	require.NoError(t, err)

	h := storage.NewFileHandler(store, fakeIndex{
		5: {Name: "notes.txt", Type: "text/plain", Size: 7},
		6: {Name: "gone.bin", Size: 3},
	})

	t.Run("streams stored payload", func(t *testing.T) {
		rec, err := serve(t, h, "5")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "payload", rec.Body.String())
		assert.Equal(t, "text/plain", rec.Header().Get(echo.HeaderContentType))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, `attachment; filename=notes.txt`, rec.Header().Get(echo.HeaderContentDisposition))
	})

	t.Run("unknown message", func(t *testing.T) {
		_, err := serve(t, h, "99")
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("metadata without payload", func(t *testing.T) {
		_, err := serve(t, h, "6")
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusNotFound, he.Code)
	})

	t.Run("non-numeric id", func(t *testing.T) {
		_, err := serve(t, h, "abc")
		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})
}

func TestFileHandler_UntrustedMetadata(t *testing.T) {
	store := storage.NewAferoStore(afero.NewMemMapFs())
	for _, id := range []int64{7, 8, 9} {
		_, err := store.Save(context.Background(), storage.FilePath(id), bytes.NewReader([]byte("<script>alert(1)</script>")))
		require.NoError(t, err)
	}
	h := storage.NewFileHandler(store, fakeIndex{
		7: {Name: `x.html"; y="z`, Type: "text/html"},
		8: {Name: "cat.png", Type: "image/png"},
		9: {Name: "logo.svg", Type: "image/svg+xml"},
	})

	t.Run("markup is downloaded, not rendered", func(t *testing.T) {
		rec, err := serve(t, h, "7")
		require.NoError(t, err)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

		disposition, params, err := mime.ParseMediaType(rec.Header().Get(echo.HeaderContentDisposition))
		require.NoError(t, err)
		assert.Equal(t, "attachment", disposition)
		assert.Equal(t, map[string]string{"filename": `x.html"; y="z`}, params, "the name stays one parameter")
	})

	t.Run("raster images render inline", func(t *testing.T) {
		rec, err := serve(t, h, "8")
		require.NoError(t, err)
		disposition, params, err := mime.ParseMediaType(rec.Header().Get(echo.HeaderContentDisposition))
		require.NoError(t, err)
		assert.Equal(t, "inline", disposition)
		assert.Equal(t, "cat.png", params["filename"])
	})

	t.Run("svg is an attachment", func(t *testing.T) {
		rec, err := serve(t, h, "9")
		require.NoError(t, err)
		disposition, _, err := mime.ParseMediaType(rec.Header().Get(echo.HeaderContentDisposition))
		require.NoError(t, err)
		assert.Equal(t, "attachment", disposition)
	})
}
