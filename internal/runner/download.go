package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
)

// SetHTTPClient replaces the client used for downloads and release lookups.
func (r *Runner) SetHTTPClient(c *http.Client) {
	r.client = c
}

// GetJSON fetches url and decodes the JSON body into v. It is a read-only lookup and runs
// in dry-run mode as well.
func (r *Runner) GetJSON(ctx context.Context, url string, v any) error {
	r.log.Debug("[DEBUG] Fetching %s\n", url)

	resp, err := r.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.log.Warn("[WARN] Failed to close HTTP response body: %v\n", cerr)
		}
	}()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", url, err)
	}
	return nil
}

// downloadFile downloads the content located at url and saves it to destPath.
func (r *Runner) downloadFile(ctx context.Context, url, destPath string) error {
	resp, err := r.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.log.Error("[ERROR] Failed to close response body: %s\n", cerr)
		}
	}()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", destPath, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			r.log.Error("[ERROR] Failed to close destination file: %s\n", cerr)
		}
	}()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write response to file: %w", err)
	}

	r.log.Debug("[DEBUG] Downloaded %d bytes to: %s\n", n, destPath)
	return nil
}

func (r *Runner) get(ctx context.Context, url string) (*http.Response, error) {
	if r.timeout > 0 {
		// The caller reads the body after get returns, so the deadline lives on the client.
		c := *r.client
		c.Timeout = r.timeout
		return doGet(ctx, &c, url)
	}
	return doGet(ctx, r.client, url)
}

func doGet(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: HTTP status %d", url, resp.StatusCode)
	}
	return resp, nil
}

// archiveName returns the file name of the URL path, which carries the archive extension.
func archiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}
