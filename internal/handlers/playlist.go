// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"sort"

	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
)

// PlaylistHandler mirrors the playlists of the studio and publishes the
// selected one: the playlist that is on air, or when none is, the one
// selected last, or failing that the first by id. It publishes nil when
// the studio has no playlists.
type PlaylistHandler struct {
	*collection.Publication[*livestatus.Playlist]
	config    Config
	playlists *PlaylistsHandler
}

// PlaylistsHandler publishes every playlist of the studio, ordered by id.
type PlaylistsHandler struct {
	*collection.Mirror[[]*livestatus.Playlist]
}

func newPlaylistHandler(config Config) (*PlaylistHandler, *PlaylistsHandler, error) {
	playlists := &PlaylistsHandler{
		Mirror: collection.NewMirror[[]*livestatus.Playlist]("playlists"),
	}
	h := &PlaylistHandler{
		config:    config,
		playlists: playlists,
	}
	var err error
	h.Publication, err = newPublication[*livestatus.Playlist](config, "playlist",
		livestatus.CollectionRundownPlaylists, livestatus.PublicationRundownPlaylists, h.changed)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return h, playlists, nil
}

func (h *PlaylistHandler) init(*Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.SetupSubscription(h.config.StudioID)
	return nil
}

func (h *PlaylistHandler) close() {
	h.Close()
}

func (h *PlaylistHandler) changed() {
	docs := h.Find(upstream.Selector{"studioId": h.config.StudioID})
	playlists := decodeAll[livestatus.Playlist](h.config.Logger, h.Name(), docs)
	sort.Slice(playlists, func(i, j int) bool { return playlists[i].ID < playlists[j].ID })

	prev, _ := h.Data()
	var prevID string
	if prev != nil {
		prevID = prev.ID
	}
	selected := selectPlaylist(playlists, prevID)
	if selected != nil && prev != nil && selected.ID == prev.ID {
		selected = reuse(prev, selected)
	}

	notifyChanged(h.playlists.Mirror, playlists)
	if selected.IsActive() {
		h.config.Logger.Tracef("active playlist %q (activation %q)", selected.ID, selected.ActivationID)
	}
	notifyChanged(h.Mirror, selected)
}

func selectPlaylist(playlists []*livestatus.Playlist, prevID string) *livestatus.Playlist {
	var previous *livestatus.Playlist
	for _, p := range playlists {
		if p.IsActive() {
			return p
		}
		if p.ID == prevID {
			previous = p
		}
	}
	if previous != nil {
		return previous
	}
	if len(playlists) > 0 {
		return playlists[0]
	}
	return nil
}

func (h *PlaylistsHandler) init(*Handlers) error {
	return nil
}

func (h *PlaylistsHandler) close() {}
