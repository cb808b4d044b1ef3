// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
)

// ShowStyleBaseHandler mirrors the show style base of the current rundown.
type ShowStyleBaseHandler struct {
	*collection.Publication[*livestatus.ShowStyleBase]
	config Config
	id     string
	stops  []func()
}

func newShowStyleBaseHandler(config Config) (*ShowStyleBaseHandler, error) {
	h := &ShowStyleBaseHandler{config: config}
	var err error
	h.Publication, err = newPublication[*livestatus.ShowStyleBase](config, "showStyleBase",
		livestatus.CollectionShowStyleBases, livestatus.PublicationShowStyleBase, h.changed)
	return h, errors.Trace(err)
}

func (h *ShowStyleBaseHandler) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops, handlers.Rundown.Subscribe(h.onRundownUpdate,
		collection.Field("ShowStyleBaseID"),
	))
	return nil
}

func (h *ShowStyleBaseHandler) close() {
	stopAll(h.stops)
	h.Close()
}

func (h *ShowStyleBaseHandler) onRundownUpdate(rundown *livestatus.Rundown) {
	var id string
	if rundown != nil {
		id = rundown.ShowStyleBaseID
	}
	if id == h.id && (id == "" || h.Subscribed()) {
		return
	}
	h.id = id
	if id == "" {
		h.StopSubscription()
		notifyChanged(h.Mirror, nil)
		return
	}
	h.SetupSubscription(id)
}

func (h *ShowStyleBaseHandler) changed() {
	doc, ok := h.FindOne(h.id)
	base := decodeOne[livestatus.ShowStyleBase](h.config.Logger, h.Name(), doc, ok)
	notifyChanged(h.Mirror, base)
}
