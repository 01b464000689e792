package infra

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"github.com/tnqbao/gau-compute-dispatcher/utils"
)

func TestPutArtifactRejectsExpiredGrantLocally(t *testing.T) {
	hits := 0
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer store.Close()

	svc := NewUploadService("http://unused", "", "")
	now := time.Now()
	svc.now = func() time.Time { return now }

	grant := entity.UploadGrant{WriteURL: store.URL + "/a.Input", ContentType: "text/plain", ExpiresAt: now}
	err := svc.PutArtifact(context.Background(), grant, strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, entity.ErrAuthorizationExpired)
	assert.Zero(t, hits)
}

func TestPutArtifactMapsStoreExpiry(t *testing.T) {
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<Error><Code>AccessDenied</Code><Message>Request has expired</Message></Error>`)
	}))
	defer store.Close()

	svc := NewUploadService("http://unused", "", "")
	grant := entity.UploadGrant{WriteURL: store.URL + "/a.Input", ContentType: "text/plain", ExpiresAt: time.Now().Add(time.Minute)}
	err := svc.PutArtifact(context.Background(), grant, strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, entity.ErrAuthorizationExpired)
}

func TestPutArtifactSendsGrantContentType(t *testing.T) {
	var gotType, gotBody string
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer store.Close()

	svc := NewUploadService("http://unused", "", "")
	grant := entity.UploadGrant{WriteURL: store.URL + "/a.Input", ContentType: "application/pdf", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, svc.PutArtifact(context.Background(), grant, strings.NewReader("payload"), 7))
	assert.Equal(t, "application/pdf", gotType)
	assert.Equal(t, "payload", gotBody)
}

func TestSubmitRunsFullFlow(t *testing.T) {
	var uploaded string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ak, sig, ok := utils.ParseHMACHeader(r.Header.Get("Authorization"))
		if r.URL.Path != "/store/artifacts/report.pdf.Input" {
			assert.True(t, ok)
			assert.Equal(t, "ops", ak)
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, utils.VerifyHMACRequest("secret", sig, r.Method, r.URL.Path, r.Header.Get("X-Timestamp"), body, time.Now(), time.Minute))
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}

		switch r.URL.Path {
		case "/api/v1/uploads/presign":
			var req presignRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "report.pdf.Input", req.FileName)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": 200, "data": entity.UploadGrant{
				WriteURL:     server.URL + "/store/artifacts/report.pdf.Input",
				StoreLocator: "artifacts",
				ObjectKey:    req.FileName,
				ContentType:  req.FileType,
				ExpiresAt:    time.Now().Add(2 * time.Minute),
			}})
		case "/store/artifacts/report.pdf.Input":
			b, _ := io.ReadAll(r.Body)
			uploaded = string(b)
		case "/api/v1/jobs":
			var req createJobRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "artifacts/report.pdf.Input", req.S3Path)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": 201, "data": entity.JobRecord{
				ID: "job-1", TextInput: req.TextInput, ArtifactReference: req.S3Path, Status: entity.JobStatusSubmitted,
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := NewUploadService(server.URL, "ops", "secret")
	record, err := svc.Submit(context.Background(), "report.pdf", "application/pdf", strings.NewReader("%PDF"), 4, "summarise this")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", uploaded)
	assert.Equal(t, "job-1", record.ID)
	assert.Equal(t, "artifacts/report.pdf.Input", record.ArtifactReference)
}

func TestCallMapsErrorStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"status":404,"error":"Job not found"}`)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"status":400,"error":"Invalid request payload"}`)
	}))
	defer server.Close()

	svc := NewUploadService(server.URL, "", "")
	_, err := svc.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrJobNotFound)

	_, err = svc.CreateJob(context.Background(), "hi", "x.Input")
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
}

func TestJobCallsEscapeID(t *testing.T) {
	var uris []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uris = append(uris, r.RequestURI)
		assert.Empty(t, r.URL.RawQuery)
		_, _ = io.WriteString(w, `{"status":200,"data":{"event_id":"evt-1"}}`)
	}))
	defer server.Close()

	svc := NewUploadService(server.URL, "", "")
	_, err := svc.GetJob(context.Background(), "a/b?x=1")
	require.NoError(t, err)
	eventID, err := svc.ReplayJob(context.Background(), "a/b?x=1")
	require.NoError(t, err)
	assert.Equal(t, "evt-1", eventID)

	assert.Equal(t, []string{
		"/api/v1/jobs/a%2Fb%3Fx=1",
		"/api/v1/jobs/a%2Fb%3Fx=1/replay",
	}, uris)
}
