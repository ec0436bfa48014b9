// Package domain models Trafikverket road-traffic incident data.
//
// # Data source
//
// Incidents originate from the Trafikverket traffic-information API
// (https://api.trafikinfo.trafikverket.se). The upstream object model is a
// Situation — a top-level change record — containing zero or more Deviations,
// each describing one road incident. The API has shipped several schema
// variants over time (XML and JSON bodies, geometry nested under a sub-object
// or flattened); the transport adapters converge all of them on RawSituation
// and RawDeviation so normalization is written once.
//
// # Conventions
//
// Geometry:
//
//	WGS-84 WKT strings, coordinates in lon lat order:
//	  "POINT (18.063 59.334)" → lat 59.334, lon 18.063.
//	Lines and polygons occur occasionally and reduce to the centroid of
//	their vertices. A numeric-token fallback handles malformed strings but
//	is reported as low confidence — see [ParsePoint].
//
// County numbers:
//
//	A fixed 21-value enumeration of Swedish counties (län). Codes 2, 11, 15
//	and 16 were merged away in the 1960s–90s county reforms and never
//	reused. Unknown codes are preserved with a null name.
//
// Status:
//
//	Upstream sometimes supplies an explicit status string, which always
//	wins. When absent, status is derived from the deviation's time window
//	relative to the evaluation instant — see [DeriveStatus].
//
// # Incident identity
//
// Deviation ids are the durable key when present. Deviations without one get
// "<situation id>:<raw start time>", built only from wire values so the same
// upstream entity maps to the same key on every fetch. Deterministic ids make
// the storage upsert idempotent and re-runs safe.
package domain
