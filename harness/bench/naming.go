package bench

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout sorts lexically in time order.
const TimestampLayout = "20060102-150405"

// maxCollisions bounds the -<k> suffix search.
const maxCollisions = 1000

// ResultFileName returns <timestamp>-<clients>-clients-<files>-files.
func ResultFileName(ts time.Time, clients, files int) string {
	return fmt.Sprintf("%s-%d-clients-%d-files", ts.Format(TimestampLayout), clients, files)
}

// createResult creates dir/base exclusively. When the name is taken, -1, -2, …
// is appended until a free name is found. It returns the file and its id.
func createResult(dir, base string) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, "", fmt.Errorf("creating results dir: %w", err)
	}
	id := base
	for k := 1; k <= maxCollisions; k++ {
		f, err := os.OpenFile(filepath.Join(dir, id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return f, id, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("creating result file: %w", err)
		}
		id = fmt.Sprintf("%s-%d", base, k)
	}
	return nil, "", fmt.Errorf("creating result file: %d names taken for %s", maxCollisions, base)
}
