package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/yungbote/streem-backend/internal/logger"
	"github.com/yungbote/streem-backend/internal/platform/envutil"
)

// New builds the shared OpenSearch client from OPENSEARCH_URL /
// OPENSEARCH_USERNAME / OPENSEARCH_PASSWORD and verifies connectivity
// with a ping.
func New(log *logger.Logger) (*opensearchgo.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	rawURL := strings.TrimSpace(os.Getenv("OPENSEARCH_URL"))
	if rawURL == "" {
		rawURL = "http://localhost:9200"
	}

	cfg := opensearchgo.Config{
		Addresses: strings.Split(rawURL, ","),
		Username:  strings.TrimSpace(os.Getenv("OPENSEARCH_USERNAME")),
		Password:  strings.TrimSpace(os.Getenv("OPENSEARCH_PASSWORD")),
	}
	if envutil.Bool("OPENSEARCH_INSECURE_SKIP_VERIFY", false) {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := opensearchgo.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Ping(ctx, client); err != nil {
		return nil, err
	}

	log.With("client", "OpenSearchClient").Info("OpenSearch connected", "url", rawURL)
	return client, nil
}

func Ping(ctx context.Context, client *opensearchgo.Client) error {
	req := opensearchapi.PingRequest{}
	res, err := req.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("opensearch ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch ping: status %s", res.Status())
	}
	return nil
}
