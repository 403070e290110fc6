package storage

import (
	"os"
)

// DatabaseSizeBytes returns the size of a SQLite database including its WAL and
// shared-memory files. Missing files contribute 0.
func DatabaseSizeBytes(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	var total int64
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
		}
	}
	return total, nil
}
