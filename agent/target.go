package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/thorium-platform/thorium/apiclient"
	"github.com/thorium-platform/thorium/errs"
	"github.com/thorium-platform/thorium/model"
)

// resultID derives the deterministic id a duplicate (tool, key, cmd,
// body-hash) submission collapses onto, by hashing the joined fields.
func resultID(tool, key, cmd, bodyHash string) string {
	h := sha256.Sum256([]byte(tool + "\x00" + key + "\x00" + cmd + "\x00" + bodyHash))
	return hex.EncodeToString(h[:])
}

// bodyHash derives the BodyHash field recorded on a Result, used only for
// the resultID derivation above: it does not need to be cryptographically
// distinguishing beyond collision-avoidance.
func bodyHash(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// materialiseSample downloads the sample named by job.Args["sha256"] (when
// present) into workDir, returning its path. Jobs with no sample reference
// (e.g. a repo-analysis stage) return an empty path and no error.
func materialiseSample(ctx context.Context, api *apiclient.Client, job model.Job, workDir string) (string, error) {
	sha, _ := job.Args["sha256"].(string)
	if sha == "" {
		return "", nil
	}
	r, err := api.DownloadSample(ctx, sha)
	if err != nil {
		return "", err
	}
	defer r.Close()

	path := filepath.Join(workDir, sha)
	f, err := os.Create(path)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "create sample file", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", errs.Wrap(errs.Internal, "write sample file", err)
	}
	return path, nil
}
