package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ambdigitalagency/hivepost/config"

	"github.com/aliyun/alibaba-cloud-sdk-go/services/sts"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"
)

// AssetStorage is the object-storage collaborator: upload bytes under a key,
// resolve a key to a public URL.
type AssetStorage interface {
	UploadAsset(path string, data []byte, contentType string) (string, error)
	PublicURL(storageKey string) string
}

// OSSStorage stores generated images in an Aliyun OSS bucket.
type OSSStorage struct {
	cfg *config.Config
}

func NewOSSStorage(cfg *config.Config) *OSSStorage {
	return &OSSStorage{cfg: cfg}
}

func (s *OSSStorage) bucket() (*oss.Bucket, error) {
	client, err := oss.New(
		s.cfg.OSSEndpoint,
		s.cfg.OSSAccessKeyID,
		s.cfg.OSSAccessKeySecret,
		oss.Timeout(60, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %v", err)
	}
	return client.Bucket(s.cfg.OSSBucketName)
}

// UploadAsset puts the bytes under path and returns the storage key. One
// retry on failure with a fresh client, token expiry is the usual culprit.
func (s *OSSStorage) UploadAsset(path string, data []byte, contentType string) (string, error) {
	bucket, err := s.bucket()
	if err != nil {
		return "", err
	}

	opts := []oss.Option{oss.ContentType(contentType)}
	err = bucket.PutObject(path, bytes.NewReader(data), opts...)
	if err != nil {
		zap.L().Warn("upload failed, retrying once", zap.String("path", path), zap.Error(err))
		bucket, rerr := s.bucket()
		if rerr != nil {
			return "", rerr
		}
		err = bucket.PutObject(path, bytes.NewReader(data), opts...)
	}
	if err != nil {
		return "", fmt.Errorf("upload failed after retry: %v", err)
	}
	return path, nil
}

// PublicURL derives the bucket-hosted URL for a storage key.
func (s *OSSStorage) PublicURL(storageKey string) string {
	endpoint := s.cfg.OSSEndpoint
	scheme := "https"
	if idx := strings.Index(endpoint, "://"); idx != -1 {
		scheme = endpoint[:idx]
		endpoint = endpoint[idx+3:]
	}
	return fmt.Sprintf("%s://%s.%s/%s", scheme, s.cfg.OSSBucketName, endpoint, storageKey)
}

// STSCredentials are short-lived credentials for browser-side uploads of
// business reference materials.
type STSCredentials struct {
	AccessKeyId     string `json:"accessKeyId"`
	AccessKeySecret string `json:"accessKeySecret"`
	SecurityToken   string `json:"securityToken"`
	Expiration      string `json:"expiration"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
}

func GetUploadCredentials() (*STSCredentials, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// STS wants the region id without the "oss-" prefix
	stsRegion := cfg.OSSRegion
	if after, ok := strings.CutPrefix(stsRegion, "oss-"); ok {
		stsRegion = after
	}

	client, err := sts.NewClientWithAccessKey(stsRegion, cfg.OSSAccessKeyID, cfg.OSSAccessKeySecret)
	if err != nil {
		return nil, err
	}

	request := sts.CreateAssumeRoleRequest()
	request.Scheme = "https"
	request.RoleArn = cfg.OSSRoleArn
	request.RoleSessionName = "hivepost-upload"
	request.DurationSeconds = "3600"

	response, err := client.AssumeRole(request)
	if err != nil {
		return nil, err
	}

	return &STSCredentials{
		AccessKeyId:     response.Credentials.AccessKeyId,
		AccessKeySecret: response.Credentials.AccessKeySecret,
		SecurityToken:   response.Credentials.SecurityToken,
		Expiration:      response.Credentials.Expiration,
		Region:          cfg.OSSRegion,
		Bucket:          cfg.OSSBucketName,
	}, nil
}
