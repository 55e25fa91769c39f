package audit

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDir returns the on-disk directory for one relay domain's audit trail
// under root: root/audit/<domain>/.
func DataDir(root, domain string) string {
	return filepath.Join(root, "audit", domain)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("audit: mkdir %s: %w", path, err)
	}
	return nil
}
