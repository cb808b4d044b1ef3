// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"fmt"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
)

// AdLibsTopic is the name of the ad-libs topic.
const AdLibsTopic = "adLibs"

// AdLibsStatus is the frame sent on the ad-libs topic.
type AdLibsStatus struct {
	Event             string        `json:"event"`
	RundownPlaylistID *string       `json:"rundownPlaylistId"`
	AdLibs            []AdLibStatus `json:"adLibs"`
	GlobalAdLibs      []AdLibStatus `json:"globalAdLibs"`
}

// AdLibStatus describes an ad-lib action or piece.
type AdLibStatus struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	SourceLayer string            `json:"sourceLayer"`
	OutputLayer string            `json:"outputLayer"`
	ActionType  []AdLibActionType `json:"actionType"`
	Tags        []string          `json:"tags,omitempty"`
	PublicData  any               `json:"publicData,omitempty"`
}

// AdLibActionType is one way of triggering an ad-lib action.
type AdLibActionType struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

type adLibsTopic struct {
	*topic
	playlist      *livestatus.Playlist
	showStyle     *livestatus.ShowStyleBase
	actions       []*livestatus.AdLibAction
	pieces        []*livestatus.AdLibPiece
	globalActions []*livestatus.AdLibAction
	globalPieces  []*livestatus.AdLibPiece
}

func newAdLibsTopic(config Config, sources Sources) *adLibsTopic {
	t := &adLibsTopic{}
	t.topic = newTopic(AdLibsTopic, config, t.buildStatus)
	observe(t.topic, sources.Playlist, func(p *livestatus.Playlist) {
		t.playlist = p
		t.SendStatusToAll()
	}, collection.Field("ID"))
	observe(t.topic, sources.ShowStyleBase, func(base *livestatus.ShowStyleBase) {
		t.showStyle = base
		t.SendStatusToAll()
	}, collection.Fields("SourceLayers", "OutputLayers")...)
	observe(t.topic, sources.AdLibActions, func(actions []*livestatus.AdLibAction) {
		t.actions = actions
		t.SendStatusToAll()
	})
	observe(t.topic, sources.AdLibs, func(pieces []*livestatus.AdLibPiece) {
		t.pieces = pieces
		t.SendStatusToAll()
	})
	observe(t.topic, sources.GlobalAdLibActions, func(actions []*livestatus.AdLibAction) {
		t.globalActions = actions
		t.SendStatusToAll()
	})
	observe(t.topic, sources.GlobalAdLibs, func(pieces []*livestatus.AdLibPiece) {
		t.globalPieces = pieces
		t.SendStatusToAll()
	})
	return t
}

func (t *adLibsTopic) buildStatus() (any, bool) {
	status := AdLibsStatus{
		Event:        AdLibsTopic,
		AdLibs:       adLibStatuses(t.showStyle, t.actions, t.pieces),
		GlobalAdLibs: adLibStatuses(t.showStyle, t.globalActions, t.globalPieces),
	}
	if t.playlist != nil {
		status.RundownPlaylistID = &t.playlist.ID
	}
	return status, true
}

// adLibStatuses lists actions before pieces, each in handler order.
func adLibStatuses(showStyle *livestatus.ShowStyleBase, actions []*livestatus.AdLibAction, pieces []*livestatus.AdLibPiece) []AdLibStatus {
	out := make([]AdLibStatus, 0, len(actions)+len(pieces))
	for _, a := range actions {
		types := make([]AdLibActionType, 0, len(a.TriggerModes))
		for _, mode := range a.TriggerModes {
			types = append(types, AdLibActionType{
				Name:  mode.Data,
				Label: labelText(mode.Display.Label),
			})
		}
		out = append(out, AdLibStatus{
			ID:          a.ID,
			Name:        labelText(a.Display.Label),
			SourceLayer: showStyle.SourceLayerName(a.Display.SourceLayerID),
			OutputLayer: showStyle.OutputLayerName(a.Display.OutputLayerID),
			ActionType:  types,
			Tags:        a.Display.Tags,
			PublicData:  a.PublicData,
		})
	}
	for _, p := range pieces {
		out = append(out, AdLibStatus{
			ID:          p.ID,
			Name:        p.Name,
			SourceLayer: showStyle.SourceLayerName(p.SourceLayerID),
			OutputLayer: showStyle.OutputLayerName(p.OutputLayerID),
			ActionType:  []AdLibActionType{},
			Tags:        p.Tags,
			PublicData:  p.PublicData,
		})
	}
	return out
}

// labelText returns a display label, which is either plain text or a
// translatable message carrying its untranslated text in "key".
func labelText(label any) string {
	switch l := label.(type) {
	case nil:
		return ""
	case string:
		return l
	case map[string]any:
		if key, ok := l["key"].(string); ok {
			return key
		}
		return ""
	default:
		return fmt.Sprint(l)
	}
}
