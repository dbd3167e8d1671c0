package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// saveDebugSnapshot writes the failing page's raw body to
// debug/fail_<ts>_<hash>.html so a parse/extract failure can be inspected
// after the fact (§7). Failures here are logged and swallowed: losing a
// debug artifact is never a reason to fail the run.
func (e *Engine) saveDebugSnapshot(url, body string) {
	if !e.cfg.Debug.Enabled {
		return
	}
	if err := os.MkdirAll(e.cfg.Debug.Dir, 0o755); err != nil {
		e.logger.Warn("debug snapshot: mkdir failed", "error", err)
		return
	}

	sum := sha256.Sum256([]byte(url))
	name := fmt.Sprintf("fail_%d_%s.html", time.Now().Unix(), hex.EncodeToString(sum[:])[:12])
	path := filepath.Join(e.cfg.Debug.Dir, name)

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		e.logger.Warn("debug snapshot: write failed", "url", url, "error", err)
		return
	}
	e.logger.Debug("debug snapshot saved", "url", url, "path", path)
}
