package agent

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	apiExternalProbeName = "api-external"
	apiInternalProbeName = "api-internal"

	serviceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"
	serviceAccountCAPath    = "/var/run/secrets/kubernetes.io/serviceaccount/ca.crt"
)

// VersionClient calls GET /version against an API server host, the same
// check client.VersionApi(...).get_code() performs in probe_pod.py's
// api_probe.
type VersionClient struct {
	host   string
	token  string
	client *http.Client
}

// NewExternalVersionClient builds a VersionClient for the external API
// server host the agent was started with (normally the garden/shoot
// kubeconfig's cluster URL), authenticated with bearerToken.
func NewExternalVersionClient(host, bearerToken string) *VersionClient {
	return &VersionClient{
		host:  host,
		token: bearerToken,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// newInternalVersionClient authenticates to the in-cluster API server
// service exactly like a pod's default service-account credentials would,
// mirroring probe_pod.py's api_probe building a second client.Configuration
// pointed at https://kubernetes.default.svc.cluster.local.
func newInternalVersionClient() (*VersionClient, error) {
	token, err := os.ReadFile(serviceAccountTokenPath)
	if err != nil {
		return nil, fmt.Errorf("reading in-cluster service account token: %w", err)
	}
	caPEM, err := os.ReadFile(serviceAccountCAPath)
	if err != nil {
		return nil, fmt.Errorf("reading in-cluster CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("parsing in-cluster CA bundle")
	}
	return &VersionClient{
		host:  "https://kubernetes.default.svc.cluster.local",
		token: string(token),
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}},
		},
	}, nil
}

type version struct {
	Major string `json:"major"`
	Minor string `json:"minor"`
}

func (v *VersionClient) getVersion(ctx context.Context) (*version, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.host+"/version", nil)
	if err != nil {
		return nil, err
	}
	if v.token != "" {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s/version: status %d", v.host, resp.StatusCode)
	}
	var ver version
	if err := json.NewDecoder(resp.Body).Decode(&ver); err != nil {
		return nil, fmt.Errorf("decoding version response: %w", err)
	}
	return &ver, nil
}

// APIProbe repeatedly queries the external and internal API server
// endpoints every Interval, emitting an api-external/api-internal heartbeat
// per attempt.
//
// Grounded on probe_pod.py's api_probe.
func APIProbe(ctx context.Context, emitter *Emitter, zone string, external *VersionClient) error {
	internal, err := newInternalVersionClient()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, err := external.getVersion(ctx)
		emitter.Enqueue(ctx, apiExternalProbeName, zone, err == nil, "")

		_, err = internal.getVersion(ctx)
		emitter.Enqueue(ctx, apiInternalProbeName, zone, err == nil, "")

		time.Sleep(Interval)
	}
}
