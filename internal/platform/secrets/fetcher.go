package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const refPrefix = "secret://"

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret:// references using Google Secret Manager with in-process caching.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	projectID  string
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// FetcherOption customises Fetcher construction.
type FetcherOption func(*Fetcher)

// WithLogger attaches a logger used for fetch diagnostics.
func WithLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClient injects a pre-built Secret Manager client, typically a test double.
func WithClient(client secretManagerClient) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
		f.ownsClient = false
	}
}

// NewFetcher constructs a Fetcher scoped to the given default project.
func NewFetcher(ctx context.Context, projectID string, opts ...FetcherOption) (*Fetcher, error) {
	fetcher := &Fetcher{
		projectID: strings.TrimSpace(projectID),
		logger:    zap.NewNop(),
		cache:     make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fetcher)
		}
	}

	if fetcher.client == nil {
		client, err := secretManagerClientFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("secrets: create client: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}

	return fetcher, nil
}

// Resolve fetches the latest version of the referenced secret. Values without
// the secret:// prefix are returned verbatim so plain env values keep working.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}

	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, refPrefix) {
		return trimmed, nil
	}

	name, err := f.resourceName(trimmed)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	cached, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		f.logger.Warn("secret access failed", zap.String("name", name), zap.Error(err))
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secrets: empty payload for %s", name)
	}

	value := string(resp.Payload.Data)
	f.mu.Lock()
	f.cache[name] = value
	f.mu.Unlock()

	return value, nil
}

// resourceName expands a secret reference into a full Secret Manager version path.
// Accepted forms: secret://<name>, secret://<project>/<name>, and a full
// secret://projects/... resource path.
func (f *Fetcher) resourceName(ref string) (string, error) {
	body := strings.Trim(strings.TrimPrefix(ref, refPrefix), "/")
	if body == "" {
		return "", fmt.Errorf("secrets: invalid reference %q", ref)
	}

	if strings.HasPrefix(body, "projects/") {
		if strings.Contains(body, "/versions/") {
			return body, nil
		}
		return body + "/versions/latest", nil
	}

	parts := strings.Split(body, "/")
	switch len(parts) {
	case 1:
		if f.projectID == "" {
			return "", fmt.Errorf("secrets: reference %q needs a default project", ref)
		}
		return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", f.projectID, parts[0]), nil
	case 2:
		return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", parts[0], parts[1]), nil
	default:
		return "", fmt.Errorf("secrets: invalid reference %q", ref)
	}
}

// Close releases the underlying client when the fetcher owns it.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}
