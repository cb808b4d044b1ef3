// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
)

// PackagesTopic is the name of the packages topic.
const PackagesTopic = "packages"

// PackagesStatus is the frame sent on the packages topic.
type PackagesStatus struct {
	Event             string          `json:"event"`
	RundownPlaylistID *string         `json:"rundownPlaylistId"`
	Packages          []PackageStatus `json:"packages"`
}

// PackageStatus is the media status of one piece or ad-lib.
type PackageStatus struct {
	PackageName    string `json:"packageName,omitempty"`
	Status         string `json:"status"`
	RundownID      string `json:"rundownId"`
	SegmentID      string `json:"segmentId,omitempty"`
	PartID         string `json:"partId,omitempty"`
	PieceOrAdLibID string `json:"pieceOrAdLibId"`
	ThumbnailURL   string `json:"thumbnailUrl,omitempty"`
	PreviewURL     string `json:"previewUrl,omitempty"`
}

// contentStatusNames maps upstream piece status codes to their names.
var contentStatusNames = map[int]string{
	-1: "unknown",
	0:  "ok",
	10: "source_not_ready",
	20: "source_has_issues",
	30: "source_broken",
	40: "source_missing",
	50: "source_unknown_state",
}

func contentStatusName(code int) string {
	if name, ok := contentStatusNames[code]; ok {
		return name
	}
	return contentStatusNames[-1]
}

type packagesTopic struct {
	*topic
	playlist *livestatus.Playlist
	statuses []*livestatus.PieceContentStatus
}

func newPackagesTopic(config Config, sources Sources) *packagesTopic {
	t := &packagesTopic{}
	t.topic = newTopic(PackagesTopic, config, t.buildStatus)
	observe(t.topic, sources.Playlist, func(p *livestatus.Playlist) {
		t.playlist = p
		t.SendStatusToAll()
	}, collection.Field("ID"))
	observe(t.topic, sources.PieceContentStatuses, func(statuses []*livestatus.PieceContentStatus) {
		t.statuses = statuses
		t.SendStatusToAll()
	})
	return t
}

func (t *packagesTopic) buildStatus() (any, bool) {
	status := PackagesStatus{
		Event:    PackagesTopic,
		Packages: []PackageStatus{},
	}
	if t.playlist == nil {
		return status, true
	}
	status.RundownPlaylistID = &t.playlist.ID
	for _, s := range t.statuses {
		status.Packages = append(status.Packages, PackageStatus{
			PackageName:    s.Status.PackageName,
			Status:         contentStatusName(s.Status.Status),
			RundownID:      s.RundownID,
			SegmentID:      s.SegmentID,
			PartID:         s.PartID,
			PieceOrAdLibID: s.PieceID,
			ThumbnailURL:   s.Status.ThumbnailURL,
			PreviewURL:     s.Status.PreviewURL,
		})
	}
	return status, true
}
