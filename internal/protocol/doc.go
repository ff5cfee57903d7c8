// Package protocol defines the dailystoic wire messages and the content
// topics they travel on.
//
// Messages use the Protocol Buffers wire format so that decoders skip
// fields they do not know about. Encoding is canonical: fields are always
// written in ascending tag order and always present, so one logical
// message has exactly one byte representation.
//
// Schema (version 1):
//
//	message DailyStoic {
//	  uint64 timestamp = 1;
//	  string author    = 2;
//	  bytes  content   = 3;
//	}
//
//	message DailyStoicRequest {
//	  uint64 timestamp = 1;
//	}
//
// Decoding is stricter than proto3: every field must be present. A proto3
// encoder omits zero values, so a request stamped 0 (an empty payload) or
// a quote with empty content from such a peer is rejected as missing a
// field. Real peers stamp the current time and never send empty quotes,
// and the strict check keeps garbage payloads from passing as requests.
//
// Breaking schema changes must bump Version, which moves both topics to a
// new namespace.
package protocol
