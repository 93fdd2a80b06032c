// Package topic implements structural subscription keys for the push
// stream.
//
// A topic path is an ordered sequence of primitive segments (strings
// and integers) naming the entity a change notification concerns, for
// example ["device", 42]. Paths are compared structurally, never by
// identity: two paths with equal segments are the same topic.
//
// # Canonical Keys
//
// Every path has a canonical string key (strings quoted, integers in
// decimal, segments joined by "/"). The key is what sets index on, so
// set membership and set equality are order-independent and purely
// structural.
//
// # Wire Filter
//
// A set renders to the push endpoint's filter query parameter with
// FilterString: segments joined by "/", paths joined by ",". Segment
// strings therefore must not contain the delimiter characters; the
// constructors reject them.
package topic
