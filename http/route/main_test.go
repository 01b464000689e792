package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"github.com/tnqbao/gau-compute-dispatcher/http/controller"
	"github.com/tnqbao/gau-compute-dispatcher/infra"
	"github.com/tnqbao/gau-compute-dispatcher/repository"
	"github.com/tnqbao/gau-compute-dispatcher/utils"
)

type fakeAuthorizer struct{}

func (fakeAuthorizer) Authorize(_ context.Context, objectKey, contentType string) (entity.UploadGrant, error) {
	if objectKey == "" || contentType == "" {
		return entity.UploadGrant{}, entity.ErrInvalidRequest
	}
	return entity.UploadGrant{
		WriteURL:     "https://artifacts.example.com/" + objectKey + "?X-Amz-Expires=120",
		StoreLocator: "artifacts",
		ObjectKey:    objectKey,
		ContentType:  contentType,
		ExpiresAt:    time.Now().Add(120 * time.Second),
	}, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func setupRouter(t *testing.T, env *config.EnvConfig) (*gin.Engine, *repository.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.Migrate(db))

	repo := repository.NewRepository(db)
	ctrl := controller.NewController(
		&config.Config{EnvConfig: env},
		&infra.Infra{Logger: infra.NewLoggerClient(io.Discard), UploadAuthorizer: fakeAuthorizer{}},
		repo,
	)
	return SetupRouter(ctrl), repo
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestPresignUpload(t *testing.T) {
	r, _ := setupRouter(t, &config.EnvConfig{})

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/uploads/presign", map[string]string{"fileName": "a.bin.Input", "fileType": "application/octet-stream"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var grant entity.UploadGrant
	require.NoError(t, json.Unmarshal(env.Data, &grant))
	assert.Equal(t, "artifacts", grant.StoreLocator)
	assert.Contains(t, grant.WriteURL, "a.bin.Input")

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/uploads/presign", map[string]string{"fileName": "a.bin.Input"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAndGetJob(t *testing.T) {
	r, repo := setupRouter(t, &config.EnvConfig{})

	w, env := doJSON(t, r, http.MethodPost, "/api/v1/jobs", map[string]string{"textInput": "hello", "s3Path": "artifacts/a.bin.Input"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var created entity.JobRecord
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, entity.JobStatusSubmitted, created.Status)

	pending, err := repo.OutboxRepo.FetchPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, entity.ChangeCreated, pending[0].Kind)

	w, env = doJSON(t, r, http.MethodGet, "/api/v1/jobs/"+created.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fetched entity.JobRecord
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, "artifacts/a.bin.Input", fetched.ArtifactReference)

	w, _ = doJSON(t, r, http.MethodGet, "/api/v1/jobs/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateJobValidation(t *testing.T) {
	r, repo := setupRouter(t, &config.EnvConfig{})

	for _, body := range []map[string]string{
		{"textInput": "hi", "s3Path": "artifacts/a.bin.Input"},
		{"textInput": "hello"},
		{"textInput": "hello", "s3Path": "artifacts/a.bin"},
	} {
		w, _ := doJSON(t, r, http.MethodPost, "/api/v1/jobs", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	n, err := repo.OutboxRepo.CountPending()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplayJob(t *testing.T) {
	r, repo := setupRouter(t, &config.EnvConfig{})
	require.NoError(t, repo.JobRecordRepo.CreateWithEvent(&entity.JobRecord{ID: "job-1", TextInput: "hello", ArtifactReference: "a.Input"}))

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/jobs/job-1/replay", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	n, err := repo.OutboxRepo.CountPending()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/jobs/nope/replay", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	env := &config.EnvConfig{}
	env.JWT.SecretKey = "jwt-secret"
	env.JWT.Algorithm = "HS256"
	env.ServiceAuth.AccessKey = "ops"
	env.ServiceAuth.SecretKey = "hmac-secret"
	r, _ := setupRouter(t, env)

	body := map[string]string{"fileName": "a.bin.Input", "fileType": "text/plain"}

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/uploads/presign", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("jwt-secret"))
	require.NoError(t, err)
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/uploads/presign", body, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, w.Code)

	raw, _ := json.Marshal(body)
	ts := time.Now().Unix()
	sig := utils.ComputeHMACSHA256("hmac-secret", utils.BuildStringToSign(http.MethodPost, "/api/v1/uploads/presign", ts, utils.HashBodySHA256(raw)))
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/uploads/presign", body, http.Header{
		"Authorization": {"HMAC ops:" + sig},
		"X-Timestamp":   {strconv.FormatInt(ts, 10)},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/uploads/presign", body, http.Header{
		"Authorization": {"HMAC ops:deadbeef"},
		"X-Timestamp":   {strconv.FormatInt(ts, 10)},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealth(t *testing.T) {
	r, _ := setupRouter(t, &config.EnvConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
