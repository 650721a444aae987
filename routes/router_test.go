package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citis/sapro/config"
	"github.com/citis/sapro/models"
	"github.com/citis/sapro/stores"
	"github.com/citis/sapro/utils"
)

type testServer struct {
	engine *gin.Engine
	dist   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	cfg := config.AppConfig{
		RateLimitPerMinute: 1000,
		AuthUsername:       "angel",
		AuthDisplayName:    "Angel",
		DataDir:            filepath.Join(root, "data"),
		UploadsDir:         filepath.Join(root, "uploads"),
		ClientDist:         filepath.Join(root, "dist"),
		GinMode:            "test",
	}

	passwords, err := stores.NewPasswordStore(cfg.PasswordsFile())
	require.NoError(t, err)
	files, err := stores.NewFileStore(cfg.UploadsDir)
	require.NoError(t, err)
	credential, err := utils.NewCredential("angel", "angel")
	require.NoError(t, err)

	engine := SetupRouter(Deps{
		Config:     cfg,
		Sessions:   utils.NewSessionManager("test-secret", cfg.AuthUsername),
		Credential: credential,
		LoginGuard: utils.NewLoginGuard(nil, 3, 0),
		Passwords:  passwords,
		Files:      files,
	})
	return &testServer{engine: engine, dist: cfg.ClientDist}
}

func (s *testServer) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, target, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return s.do(t, method, target, token, bytes.NewReader(b), "application/json")
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	w := s.doJSON(t, http.MethodPost, "/api/login", "", map[string]string{"username": "angel", "password": "angel"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    string `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "Angel", resp.User)
	return resp.Token
}

func (s *testServer) upload(t *testing.T, token, filename, mediaType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdf"; filename="%s"`, filename))
	h.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return s.do(t, http.MethodPost, "/api/upload", token, &buf, mw.FormDataContentType())
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.ErrorResponse {
	t.Helper()
	var e utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	assert.False(t, e.Success)
	return e
}

func TestPasswordLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	w := s.doJSON(t, http.MethodPost, "/api/passwords", token, map[string]string{"service": "SSH", "username": "root", "password": "x"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created models.PasswordEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.CreatedAt)

	w = s.do(t, http.MethodGet, "/api/passwords", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.PasswordEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created, list[0])

	w = s.doJSON(t, http.MethodPut, "/api/passwords/"+created.ID, token, map[string]string{"service": "SSH", "username": "admin", "password": "y"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.PasswordEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "admin", updated.Username)

	w = s.do(t, http.MethodDelete, "/api/passwords/"+created.ID, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/passwords", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestPasswordErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	w := s.doJSON(t, http.MethodPost, "/api/passwords", token, map[string]string{"service": "SSH", "username": "root"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decodeError(t, w).Error)

	w = s.doJSON(t, http.MethodPut, "/api/passwords/nope", token, map[string]string{"service": "a", "username": "b", "password": "c"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "password not found", decodeError(t, w).Error)

	w = s.doJSON(t, http.MethodPut, "/api/passwords/nope", token, map[string]string{"service": "a"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/passwords", token, bytes.NewBufferString("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/passwords/nope", token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFileLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	w := s.upload(t, token, "a.pdf", "application/pdf", []byte{'%'})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var up struct {
		Success bool              `json:"success"`
		File    models.FileRecord `json:"file"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	assert.True(t, up.Success)
	assert.Equal(t, "a.pdf", up.File.OriginalName)

	w = s.do(t, http.MethodGet, "/api/files", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.FileRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "a.pdf", list[0].OriginalName)
	assert.EqualValues(t, 1, list[0].Size)
	assert.Equal(t, up.File.Filename, list[0].Filename)
	stored := list[0].Filename

	w = s.do(t, http.MethodGet, "/api/files/"+stored, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte{'%'}, w.Body.Bytes())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "a.pdf")

	// browser tabs pass the token in the query string
	w = s.do(t, http.MethodGet, "/api/files/"+stored+"?token="+token, "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/files/"+stored, token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/files/"+stored, token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "file not found", decodeError(t, w).Error)

	w = s.do(t, http.MethodDelete, "/api/files/"+stored, token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadKeepsFilename(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	for _, name := range []string{"x&lt;y.pdf", "a<b.pdf", "Q1 <final>.pdf", "R&D.pdf", "informe año.pdf"} {
		w := s.upload(t, token, name, "application/pdf", []byte("%PDF"))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var up struct {
			File models.FileRecord `json:"file"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
		assert.Equal(t, name, up.File.OriginalName)
		assert.Equal(t, name, stores.OriginalName(up.File.Filename))

		w = s.do(t, http.MethodGet, "/api/files/"+url.PathEscape(up.File.Filename), token, nil, "")
		require.Equal(t, http.StatusOK, w.Code, name)
		assert.Equal(t, "%PDF", w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/api/files", token, nil, "")
	var list []models.FileRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	names := make([]string, 0, len(list))
	for _, rec := range list {
		names = append(names, rec.OriginalName)
	}
	assert.ElementsMatch(t, []string{"x&lt;y.pdf", "a<b.pdf", "Q1 <final>.pdf", "R&D.pdf", "informe año.pdf"}, names)
}

func TestUploadSameNameTwice(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	first := s.upload(t, token, "a.pdf", "application/pdf", []byte("one"))
	require.Equal(t, http.StatusOK, first.Code)
	second := s.upload(t, token, "a.pdf", "application/pdf", []byte("two"))
	require.Equal(t, http.StatusOK, second.Code)

	w := s.do(t, http.MethodGet, "/api/files", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.FileRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.NotEqual(t, list[0].Filename, list[1].Filename)

	bodies := make([]string, 0, 2)
	for _, rec := range list {
		assert.Equal(t, "a.pdf", rec.OriginalName)
		w = s.do(t, http.MethodGet, "/api/files/"+rec.Filename, token, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		bodies = append(bodies, w.Body.String())
	}
	assert.ElementsMatch(t, []string{"one", "two"}, bodies)
}

func TestUploadOverLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("writes more than 50MB")
	}
	s := newTestServer(t)
	token := s.login(t)

	w := s.upload(t, token, "big.pdf", "application/pdf", make([]byte, stores.MaxUploadSize+10))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	decodeError(t, w)

	w = s.do(t, http.MethodGet, "/api/files", token, nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)

	w := s.upload(t, token, "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	decodeError(t, w)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	w = s.do(t, http.MethodPost, "/api/upload", token, &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no file uploaded", decodeError(t, w).Error)

	w = s.do(t, http.MethodGet, "/api/files", token, nil, "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/login", "", map[string]string{"username": "angel", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid username or password", decodeError(t, w).Error)

	for _, target := range []string{"/api/passwords", "/api/files", "/api/files/1-a.pdf"} {
		w = s.do(t, http.MethodGet, target, "not-a-token", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		w = s.do(t, http.MethodGet, target, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
	w = s.doJSON(t, http.MethodPost, "/api/passwords", "", map[string]string{"service": "a", "username": "b", "password": "c"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/login", "", bytes.NewBufferString("nope"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	first := s.login(t)
	second := s.login(t)
	assert.NotEqual(t, first, second)

	w := s.do(t, http.MethodPost, "/api/logout", first, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/passwords", first, nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/passwords", second, nil, "").Code)

	// logging out again, or without a token, still succeeds
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/logout", first, nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/logout", "", nil, "").Code)
}

func TestLoginBanAfterRepeatedFailures(t *testing.T) {
	s := newTestServer(t)
	bad := map[string]string{"username": "angel", "password": "wrong"}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, s.doJSON(t, http.MethodPost, "/api/login", "", bad).Code)
	}
	w := s.doJSON(t, http.MethodPost, "/api/login", "", map[string]string{"username": "angel", "password": "angel"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(t, http.MethodGet, "/health", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"status":"ok","sessions":1}`, w.Body.String())
}

func TestClientFallback(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/dashboard", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "no build present")

	require.NoError(t, os.MkdirAll(filepath.Join(s.dist, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.dist, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.dist, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	w = s.do(t, http.MethodGet, "/dashboard/files", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>app</html>", w.Body.String())

	w = s.do(t, http.MethodGet, "/assets/app.js", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	w = s.do(t, http.MethodPost, "/dashboard", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/unknown", "", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "api route not found", decodeError(t, w).Error)
}
