// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
	"github.com/juju/livestatus/internal/handlers"
)

// ActivePiecesTopic is the name of the active pieces topic.
const ActivePiecesTopic = "activePieces"

// ActivePiecesStatus is the frame sent on the active pieces topic.
type ActivePiecesStatus struct {
	Event             string        `json:"event"`
	RundownPlaylistID *string       `json:"rundownPlaylistId"`
	ActivePieces      []PieceStatus `json:"activePieces"`
}

// PieceStatus describes a piece instance on air.
type PieceStatus struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	SourceLayer string   `json:"sourceLayer"`
	OutputLayer string   `json:"outputLayer"`
	Tags        []string `json:"tags,omitempty"`
	PublicData  any      `json:"publicData,omitempty"`
}

type activePiecesTopic struct {
	*topic
	playlist  *livestatus.Playlist
	parts     *handlers.SelectedPartInstances
	pieces    *handlers.SelectedPieceInstances
	showStyle *livestatus.ShowStyleBase
}

func newActivePiecesTopic(config Config, sources Sources) *activePiecesTopic {
	t := &activePiecesTopic{}
	t.topic = newTopic(ActivePiecesTopic, config, t.buildStatus)
	observe(t.topic, sources.Playlist, t.onPlaylistUpdate, collection.Fields("ID", "ActivationID")...)
	observe(t.topic, sources.PartInstances, t.onPartInstancesUpdate, collection.Field("Current"))
	observe(t.topic, sources.PieceInstances, t.onPieceInstancesUpdate,
		collection.Fields("Active", "CurrentPartInstance")...)
	observe(t.topic, sources.ShowStyleBase, t.onShowStyleBaseUpdate,
		collection.Fields("SourceLayers", "OutputLayers")...)
	return t
}

func (t *activePiecesTopic) onPlaylistUpdate(playlist *livestatus.Playlist) {
	t.playlist = playlist
	t.SendStatusToAll()
}

func (t *activePiecesTopic) onPartInstancesUpdate(parts *handlers.SelectedPartInstances) {
	t.parts = parts
	t.SendStatusToAll()
}

func (t *activePiecesTopic) onPieceInstancesUpdate(pieces *handlers.SelectedPieceInstances) {
	t.pieces = pieces
	t.SendStatusToAll()
}

func (t *activePiecesTopic) onShowStyleBaseUpdate(base *livestatus.ShowStyleBase) {
	t.showStyle = base
	t.SendStatusToAll()
}

func (t *activePiecesTopic) buildStatus() (any, bool) {
	if !partsAndPiecesAgree(t.parts, t.pieces) || !selectionInActivation(t.playlist, t.parts) {
		return nil, false
	}
	status := ActivePiecesStatus{
		Event:        ActivePiecesTopic,
		ActivePieces: []PieceStatus{},
	}
	if !t.playlist.IsActive() {
		return status, true
	}
	status.RundownPlaylistID = &t.playlist.ID
	if t.pieces == nil {
		return status, true
	}
	for _, pi := range t.pieces.Active {
		status.ActivePieces = append(status.ActivePieces, PieceStatus{
			ID:          pi.ID,
			Name:        pi.Piece.Name,
			SourceLayer: t.showStyle.SourceLayerName(pi.Piece.SourceLayerID),
			OutputLayer: t.showStyle.OutputLayerName(pi.Piece.OutputLayerID),
			Tags:        pi.Piece.Tags,
			PublicData:  pi.Piece.PublicData,
		})
	}
	return status, true
}
