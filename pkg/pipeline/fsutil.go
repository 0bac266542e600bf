package pipeline

import "os"

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func renameFile(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func removeFile(path string) {
	_ = os.Remove(path)
}
