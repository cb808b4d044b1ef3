// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
)

// StudioHandler mirrors the configured studio.
type StudioHandler struct {
	*collection.Publication[*livestatus.Studio]
	config Config
}

func newStudioHandler(config Config) (*StudioHandler, error) {
	h := &StudioHandler{config: config}
	var err error
	h.Publication, err = newPublication[*livestatus.Studio](config, "studio",
		livestatus.CollectionStudios, livestatus.PublicationStudios, h.changed)
	return h, errors.Trace(err)
}

func (h *StudioHandler) init(*Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.SetupSubscription(h.config.StudioID)
	return nil
}

func (h *StudioHandler) close() {
	h.Close()
}

func (h *StudioHandler) changed() {
	doc, ok := h.FindOne(h.config.StudioID)
	studio := decodeOne[livestatus.Studio](h.config.Logger, h.Name(), doc, ok)
	notifyChanged(h.Mirror, studio)
}
