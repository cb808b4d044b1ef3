// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
)

// StudioTopic is the name of the studio topic.
const StudioTopic = "studio"

// Playlist activation states reported by the studio topic.
const (
	PlaylistDeactivated = "deactivated"
	PlaylistRehearsal   = "rehearsal"
	PlaylistActivated   = "activated"
)

// StudioStatus is the frame sent on the studio topic.
type StudioStatus struct {
	Event     string           `json:"event"`
	ID        *string          `json:"id"`
	Name      string           `json:"name"`
	Playlists []PlaylistStatus `json:"playlists"`
}

// PlaylistStatus summarises one playlist of the studio.
type PlaylistStatus struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ActivationStatus string `json:"activationStatus"`
}

type studioTopic struct {
	*topic
	studio    *livestatus.Studio
	playlists []*livestatus.Playlist
}

func newStudioTopic(config Config, sources Sources) *studioTopic {
	t := &studioTopic{}
	t.topic = newTopic(StudioTopic, config, t.buildStatus)
	observe(t.topic, sources.Studio, t.onStudioUpdate, collection.Fields("ID", "Name")...)
	observe(t.topic, sources.Playlists, t.onPlaylistsUpdate)
	return t
}

func (t *studioTopic) onStudioUpdate(studio *livestatus.Studio) {
	t.studio = studio
	t.SendStatusToAll()
}

func (t *studioTopic) onPlaylistsUpdate(playlists []*livestatus.Playlist) {
	t.playlists = playlists
	t.SendStatusToAll()
}

func (t *studioTopic) buildStatus() (any, bool) {
	status := StudioStatus{
		Event:     StudioTopic,
		Playlists: []PlaylistStatus{},
	}
	if t.studio != nil {
		status.ID = &t.studio.ID
		status.Name = t.studio.Name
	}
	for _, p := range t.playlists {
		status.Playlists = append(status.Playlists, PlaylistStatus{
			ID:               p.ID,
			Name:             p.Name,
			ActivationStatus: activationStatus(p),
		})
	}
	return status, true
}

func activationStatus(p *livestatus.Playlist) string {
	switch {
	case !p.IsActive():
		return PlaylistDeactivated
	case p.Rehearsal:
		return PlaylistRehearsal
	default:
		return PlaylistActivated
	}
}
