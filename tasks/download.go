package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// downloadArtifact resolves key to a signed URL and streams it into a
// local scratch file. Network failures surface as TransientIOError;
// retries belong to the queue transport's redelivery policy, not here.
func (o *Orchestrator) downloadArtifact(ctx context.Context, key, destPath string) error {
	url, err := o.objects.SignedURL(ctx, key, signedURLTTL)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TransientIOError{Key: key, Err: err}
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return &TransientIOError{Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransientIOError{Key: key, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return &TransientIOError{Key: key, Err: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(destPath)
		return &TransientIOError{Key: key, Err: err}
	}
	return nil
}
