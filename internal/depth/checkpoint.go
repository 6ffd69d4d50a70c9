package depth

import (
	"fmt"
	"os"
	"path/filepath"
)

// Model size variants.
const (
	SizeSmall = "vits"
	SizeBase  = "vitb"
	SizeLarge = "vitl"
)

// NormalizeSize returns size when it is a known variant and SizeSmall otherwise.
func NormalizeSize(size string) string {
	switch size {
	case SizeSmall, SizeBase, SizeLarge:
		return size
	default:
		return SizeSmall
	}
}

// CheckpointName returns the checkpoint filename for a model size.
func CheckpointName(size string) string {
	return fmt.Sprintf("depth_anything_v2_%s.onnx", NormalizeSize(size))
}

// DefaultCheckpoints lists where a checkpoint is looked for, in priority
// order: ./checkpoints, the working directory, next to the executable, and
// ~/.cache/depth_anything_v2.
func DefaultCheckpoints(size string) []string {
	name := CheckpointName(size)

	candidates := []string{
		filepath.Join("checkpoints", name),
		name,
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		candidates = append(candidates,
			filepath.Join(execDir, "checkpoints", name),
			filepath.Join(execDir, name),
		)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".cache", "depth_anything_v2", name))
	}

	return candidates
}

// ResolveCheckpoint returns the first candidate that exists as a file.
func ResolveCheckpoint(candidates []string) (string, bool) {
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if absPath, err := filepath.Abs(path); err == nil {
			return absPath, true
		}
		return path, true
	}
	return "", false
}
