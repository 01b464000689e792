package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
	"github.com/tnqbao/gau-compute-dispatcher/utils"
)

// UploadService is the client side of the submission flow: it asks the API
// for an upload grant, writes the artifact straight to object storage and
// then records the job.
type UploadService struct {
	APIURL     string
	AccessKey  string
	SecretKey  string
	HTTPClient *http.Client
	now        func() time.Time
}

func InitUploadService(cfg *config.EnvConfig) *UploadService {
	if cfg.APIURL == "" {
		panic("Dispatch API URL is not configured")
	}
	return NewUploadService(cfg.APIURL, cfg.ServiceAuth.AccessKey, cfg.ServiceAuth.SecretKey)
}

func NewUploadService(apiURL, accessKey, secretKey string) *UploadService {
	return &UploadService{
		APIURL:     strings.TrimRight(apiURL, "/"),
		AccessKey:  accessKey,
		SecretKey:  secretKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		now:        time.Now,
	}
}

type apiEnvelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

type presignRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

type createJobRequest struct {
	TextInput string `json:"textInput"`
	S3Path    string `json:"s3Path"`
}

// Submit runs the full client flow for one artifact. The object is stored
// under "<fileName>.Input" and the job references it by that name.
func (s *UploadService) Submit(ctx context.Context, fileName, contentType string, body io.Reader, size int64, textInput string) (*entity.JobRecord, error) {
	grant, err := s.RequestGrant(ctx, fileName+entity.PendingArtifactSuffix, contentType)
	if err != nil {
		return nil, err
	}
	if err := s.PutArtifact(ctx, grant, body, size); err != nil {
		return nil, err
	}
	return s.CreateJob(ctx, textInput, grant.ArtifactReference())
}

func (s *UploadService) RequestGrant(ctx context.Context, fileName, fileType string) (entity.UploadGrant, error) {
	var grant entity.UploadGrant
	err := s.call(ctx, http.MethodPost, "/api/v1/uploads/presign", presignRequest{FileName: fileName, FileType: fileType}, &grant)
	if err != nil {
		return entity.UploadGrant{}, fmt.Errorf("failed to request upload grant: %w", err)
	}
	if grant.ObjectKey == "" {
		grant.ObjectKey = fileName
	}
	if grant.ContentType == "" {
		grant.ContentType = fileType
	}
	return grant, nil
}

// PutArtifact writes the artifact with the grant's URL and content type. An
// expired grant fails with entity.ErrAuthorizationExpired, whether it is
// caught locally or rejected by the store.
func (s *UploadService) PutArtifact(ctx context.Context, grant entity.UploadGrant, body io.Reader, size int64) error {
	if !grant.ExpiresAt.IsZero() && grant.Expired(s.now()) {
		return entity.ErrAuthorizationExpired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.WriteURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", grant.ContentType)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusForbidden && strings.Contains(string(raw), "Request has expired") {
		return entity.ErrAuthorizationExpired
	}
	return fmt.Errorf("object store returned %d: %s", resp.StatusCode, raw)
}

func (s *UploadService) CreateJob(ctx context.Context, textInput, artifactReference string) (*entity.JobRecord, error) {
	var record entity.JobRecord
	err := s.call(ctx, http.MethodPost, "/api/v1/jobs", createJobRequest{TextInput: textInput, S3Path: artifactReference}, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return &record, nil
}

func (s *UploadService) GetJob(ctx context.Context, id string) (*entity.JobRecord, error) {
	var record entity.JobRecord
	if err := s.call(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &record); err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &record, nil
}

// ReplayJob asks the API to dispatch a stored job again.
func (s *UploadService) ReplayJob(ctx context.Context, id string) (string, error) {
	var out struct {
		EventID string `json:"event_id"`
	}
	if err := s.call(ctx, http.MethodPost, "/api/v1/jobs/"+url.PathEscape(id)+"/replay", nil, &out); err != nil {
		return "", fmt.Errorf("failed to replay job: %w", err)
	}
	return out.EventID, nil
}

func (s *UploadService) call(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.APIURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.sign(req, body)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("dispatch API returned %d with undecodable body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode/100 != 2 {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", entity.ErrJobNotFound, envelope.Error)
		}
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s", entity.ErrInvalidRequest, envelope.Error)
		}
		return fmt.Errorf("dispatch API returned %d: %s", resp.StatusCode, envelope.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *UploadService) sign(req *http.Request, body []byte) {
	if s.AccessKey == "" || s.SecretKey == "" {
		return
	}
	ts := s.now().Unix()
	stringToSign := utils.BuildStringToSign(req.Method, req.URL.Path, ts, utils.HashBodySHA256(body))
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("Authorization", "HMAC "+s.AccessKey+":"+utils.ComputeHMACSHA256(s.SecretKey, stringToSign))
}
