package stream

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hbomb79/hlsgate/internal/identity"
	"github.com/hbomb79/hlsgate/internal/stream/hls"
)

// MediaServer maps stream requests on to files inside of job directories,
// refusing anything which would escape the directory of the job.
type MediaServer struct {
	root string
}

func NewMediaServer(root string) *MediaServer {
	return &MediaServer{root: root}
}

// Resolve returns the path on disk, and the content type, of the file
// for the key and relative filename provided. ErrFileNotFound is returned
// for malformed keys, traversal attempts, directories, the job record,
// and files which do not (yet) exist.
func (server *MediaServer) Resolve(key string, name string) (string, string, error) {
	if !identity.IsKey(key) || name == "" {
		return "", "", ErrFileNotFound
	}
	if strings.ContainsRune(name, '\\') || strings.ContainsRune(name, 0) || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", "", ErrFileNotFound
	}

	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", "", ErrFileNotFound
		}
	}

	if filepath.Base(name) == JobRecordName || strings.HasPrefix(filepath.Base(name), ".") {
		return "", "", ErrFileNotFound
	}

	jobDir := filepath.Join(server.root, key)
	path := filepath.Join(jobDir, filepath.FromSlash(name))
	if !strings.HasPrefix(path, jobDir+string(filepath.Separator)) {
		return "", "", ErrFileNotFound
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", "", ErrFileNotFound
	}

	return path, hls.ContentTypeFor(path), nil
}
