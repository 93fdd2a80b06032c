// Package discovery locates dashboard gateways on the local network.
//
// Gateways advertise the _gridview._tcp service over mDNS. The TXT
// record carries the REST API base path and the push stream path, so
// a dashboard can assemble both collaborator URLs from one browse
// result. Entries seen on multiple interfaces are aggregated by
// instance name.
package discovery
