package kyc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	httpclient "loan-workers/internal/common/http"
	"loan-workers/internal/pipeline"
)

type bureauResponse struct {
	PAN         string `json:"pan"`
	CreditScore int    `json:"credit_score"`
	Rating      string `json:"rating"`
}

// HTTPBureau queries a remote bureau at GET <baseURL>/credit-score/<pan>.
type HTTPBureau struct {
	baseURL string
	client  *httpclient.Client
}

func NewHTTPBureau(baseURL, apiKey string, timeout time.Duration) *HTTPBureau {
	client := httpclient.NewClient(timeout)
	if apiKey != "" {
		client = client.WithHeader("X-API-Key", apiKey)
	}
	return &HTTPBureau{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (b *HTTPBureau) CreditScore(ctx context.Context, pan string) (pipeline.CreditReport, error) {
	endpoint := fmt.Sprintf("%s/credit-score/%s", b.baseURL, url.PathEscape(strings.ToUpper(pan)))

	var resp bureauResponse
	if err := b.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return pipeline.CreditReport{}, fmt.Errorf("credit bureau lookup failed: %w", err)
	}
	if resp.CreditScore <= 0 {
		return pipeline.CreditReport{}, fmt.Errorf("credit bureau returned no score")
	}
	rating := resp.Rating
	if rating == "" {
		rating = pipeline.CreditRating(resp.CreditScore)
	}
	return pipeline.CreditReport{Score: resp.CreditScore, Rating: rating}, nil
}
