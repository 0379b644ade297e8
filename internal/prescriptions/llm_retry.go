package prescriptions

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"medscan-backend/internal/llm"
	"medscan-backend/internal/shared/telemetry"
)

const llmRetryBaseDelay = 300 * time.Millisecond

// retryingLLM retries one transient analyzer failure. Malformed output is
// never retried; that classification happens after parsing, not here.
type retryingLLM struct {
	base     llm.Client
	blobName string
}

func newRetryingLLM(base llm.Client, blobName string) llm.Client {
	if base == nil {
		return nil
	}
	return retryingLLM{base: base, blobName: blobName}
}

func (r retryingLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	out, err := r.base.Complete(ctx, req)
	if err == nil || !shouldRetryLLM(err) {
		return out, err
	}

	telemetry.Info("llm.retry", map[string]any{
		"attempt":   1,
		"blob_name": r.blobName,
		"error":     err.Error(),
	})
	select {
	case <-time.After(llmRetryBaseDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return r.base.Complete(ctx, req)
}

func shouldRetryLLM(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
