// Package codec encodes outbound control messages and decodes inbound frames.
//
// Two wire encodings are supported and chosen per client:
//   - json: text frames, decoded with sonic
//   - msgpack: binary frames
//
// Inbound frames may carry a single record or an array of records; both decode
// to a []Record.
package codec
