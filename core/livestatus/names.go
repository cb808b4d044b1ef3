// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package livestatus

// Collection names mirrored from the upstream system.
const (
	CollectionStudios                     = "studios"
	CollectionRundownPlaylists            = "rundownPlaylists"
	CollectionRundowns                    = "rundowns"
	CollectionSegments                    = "segments"
	CollectionParts                       = "parts"
	CollectionPartInstances               = "partInstances"
	CollectionPieceInstances              = "pieceInstances"
	CollectionShowStyleBases              = "uiShowStyleBase"
	CollectionAdLibActions                = "adLibActions"
	CollectionAdLibPieces                 = "adLibPieces"
	CollectionRundownBaselineAdLibActions = "rundownBaselineAdLibActions"
	CollectionRundownBaselineAdLibPieces  = "rundownBaselineAdLibPieces"
	CollectionBuckets                     = "buckets"
	CollectionBucketAdLibActions          = "bucketAdLibActions"
	CollectionBucketAdLibPieces           = "bucketAdLibPieces"
	CollectionPieceContentStatuses        = "uiPieceContentStatuses"
)

// Publication names requested from the upstream system.
const (
	PublicationStudios                     = "studios"
	PublicationRundownPlaylists            = "rundownPlaylists"
	PublicationRundownsInPlaylists         = "rundownsInPlaylists"
	PublicationSegments                    = "segments"
	PublicationParts                       = "parts"
	PublicationPartInstancesSimple         = "partInstancesSimple"
	PublicationPieceInstancesSimple        = "pieceInstancesSimple"
	PublicationShowStyleBase               = "uiShowStyleBase"
	PublicationAdLibActions                = "adLibActions"
	PublicationAdLibPieces                 = "adLibPieces"
	PublicationRundownBaselineAdLibActions = "rundownBaselineAdLibActions"
	PublicationRundownBaselineAdLibPieces  = "rundownBaselineAdLibPieces"
	PublicationBuckets                     = "buckets"
	PublicationBucketAdLibActions          = "bucketAdLibActions"
	PublicationBucketAdLibPieces           = "bucketAdLibPieces"
	PublicationPieceContentStatuses        = "uiPieceContentStatuses"
)

// AllCollections lists every collection the gateway mirrors.
var AllCollections = []string{
	CollectionStudios,
	CollectionRundownPlaylists,
	CollectionRundowns,
	CollectionSegments,
	CollectionParts,
	CollectionPartInstances,
	CollectionPieceInstances,
	CollectionShowStyleBases,
	CollectionAdLibActions,
	CollectionAdLibPieces,
	CollectionRundownBaselineAdLibActions,
	CollectionRundownBaselineAdLibPieces,
	CollectionBuckets,
	CollectionBucketAdLibActions,
	CollectionBucketAdLibPieces,
	CollectionPieceContentStatuses,
}
