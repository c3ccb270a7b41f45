package update

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

const downloadDirPermissions = 0750

// download fetches the bundle at rawURL into the staging directory.
//
// Parameters:
//   - ctx: Context for cancellation
//   - rawURL: The bundle location
//
// Returns:
//   - string: Path of the staged bundle file
//   - error: When the directory cannot be created, the request fails, the
//     server answers with a non-2xx status, or the body cannot be written
func (h *Handler) download(ctx context.Context, rawURL string) (string, error) {
	if err := os.MkdirAll(h.downloadDir, downloadDirPermissions); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("building download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("downloading bundle: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(h.downloadDir, "bundle-*.raucb")
	if err != nil {
		return "", fmt.Errorf("staging bundle file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()           //nolint:errcheck // best-effort cleanup
		os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("writing bundle file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return "", fmt.Errorf("closing bundle file: %w", err)
	}

	return tmp.Name(), nil
}
