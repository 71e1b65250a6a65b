package fetch

import (
	"fmt"

	"github.com/ymzhao/logleaks/internal/dataset"
)

const hashPrefixLen = 8

// TargetFilename is a deterministic function of (identifier, scan date,
// content hash), so re-running a selection always produces the same target
// paths. On-disk existence at that path, not the checkpoint, decides
// skip-if-exists.
func TargetFilename(item dataset.WorkItem) string {
	return fmt.Sprintf("%s_%s_%s.apk",
		item.Identifier,
		item.ScanDate.Format("20060102"),
		hashPrefix(item.SHA256),
	)
}

func hashPrefix(sha256 string) string {
	if len(sha256) <= hashPrefixLen {
		return sha256
	}

	return sha256[:hashPrefixLen]
}
