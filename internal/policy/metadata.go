package policy

import (
	"fmt"

	"github.com/aravindh-murugesan/snapsentry-go/internal/cloud"
)

// SnapshotName is the Name tag for snapshots of this volume. It falls back
// to "<volume>-snapshot" when the policy carries no name.
func (p Policy) SnapshotName() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%s-snapshot", p.VolumeID)
}

// SnapshotTags is the tag set applied to a freshly created primary snapshot.
func (p Policy) SnapshotTags() map[string]string {
	return map[string]string{
		cloud.TagName:     p.SnapshotName(),
		cloud.TagCreator:  cloud.CreatorValue,
		cloud.TagVolumeID: p.VolumeID,
	}
}

// CopyTags is the tag set applied to a replica, recording the primary
// snapshot it was copied from.
func (p Policy) CopyTags(sourceSnapshotID string) map[string]string {
	tags := p.SnapshotTags()
	tags[cloud.TagSnapshotSource] = sourceSnapshotID
	return tags
}
