package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// FilePeerStore is a trivial collab.PeerStore backed by a single JSON
// file, adapted from the teacher's PeerInfo.SaveToFile/LoadFromFile
// (spec §9 session recovery is a Non-goal beyond this narrow contract).
type FilePeerStore struct {
	path string
}

func NewFilePeerStore(path string) *FilePeerStore {
	return &FilePeerStore{path: path}
}

func (s *FilePeerStore) Save(ctx context.Context, snapshot []byte) error {
	if s.path == "" {
		return fmt.Errorf("peer store path is not set")
	}
	if err := os.WriteFile(s.path, snapshot, 0644); err != nil {
		return fmt.Errorf("failed to save peer store to file: %w", err)
	}
	slog.Debug("gateway: peer store saved", "path", s.path)
	return nil
}

func (s *FilePeerStore) Load(ctx context.Context) ([]byte, error) {
	if s.path == "" {
		return nil, fmt.Errorf("peer store path is not set")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("gateway: peer store file does not exist, starting empty", "path", s.path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read peer store file: %w", err)
	}
	slog.Debug("gateway: peer store loaded", "path", s.path)
	return data, nil
}
