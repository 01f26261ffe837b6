package mnist

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DefaultMirror serves the four gzipped IDX files.  The original
// yann.lecun.com host rate-limits anonymous downloads, so default to
// the CVDF mirror.
const DefaultMirror = "https://storage.googleapis.com/cvdf-datasets/mnist/"

// SHA-256 digests of the published gzipped IDX files.
var fileDigests = map[string]string{
	TrainImagesFile: "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	TrainLabelsFile: "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	TestImagesFile:  "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	TestLabelsFile:  "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// Fetch downloads the four dataset files from mirror into dir,
// verifying each against its published SHA-256 digest.  Files already
// present with a correct digest are not downloaded again.  An empty
// mirror selects DefaultMirror.
func Fetch(ctx context.Context, dir, mirror string) error {
	if mirror == "" {
		mirror = DefaultMirror
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("while creating data dir: %w", err)
	}

	for name, digest := range fileDigests {
		path := filepath.Join(dir, name)

		if err := verifyDigest(path, digest); err == nil {
			continue
		}

		if err := download(ctx, mirror+name, path); err != nil {
			return fmt.Errorf("while downloading %s: %w", name, err)
		}

		if err := verifyDigest(path, digest); err != nil {
			return fmt.Errorf("after downloading %s: %w", name, err)
		}
	}

	return nil
}

func download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("while building request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("while fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("while writing file: %w", err)
	}

	return f.Close()
}

// verifyDigest checks that the file at path has the expected SHA-256
// digest, given as a lowercase hex string.
func verifyDigest(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("while opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("while hashing file: %w", err)
	}

	if got := fmt.Sprintf("%x", h.Sum(nil)); got != want {
		return fmt.Errorf("digest mismatch for %s: got %s, want %s", path, got, want)
	}

	return nil
}
