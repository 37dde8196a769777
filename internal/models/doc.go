// Package models defines the data transfer objects shared by the catalog, chart and chord services.
//
//   - [ReleaseSummary] : a new release joined with its first track's details
//   - [TrackMatch] : the projection of the best catalog search hit for a title/artist query
//   - [ChartTrack] : an entry of the chart collaborator's top tracks
//   - [TrackDetails] : chart collaborator metadata for a single track
//   - [ChordAnalysis] : chord progressions extracted from a text-generation response
//
// None of these types are persisted; the release listing is held in the in-memory cache only.
package models
