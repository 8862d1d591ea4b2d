// Package router implements whitelist/blacklist matching and destination
// routing.
package router

import (
	"path"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// ElementList is a set of glob patterns matched against a single field
// (domain, address, ...). An empty ElementList matches everything, the
// convention geth-derived matching lists use for "no restriction."
type ElementList []string

// Match reports whether value matches any pattern in the list (or the list
// is empty, meaning unrestricted).
func (l ElementList) Match(value string) bool {
	if len(l) == 0 {
		return true
	}
	for _, pattern := range l {
		if pattern == "*" || pattern == value {
			return true
		}
		if ok, _ := path.Match(pattern, value); ok {
			return true
		}
	}
	return false
}

// MatchingListEntry restricts messages by origin/destination domain and
// sender/recipient address glob.
type MatchingListEntry struct {
	OriginDomain      ElementList
	DestinationDomain ElementList
	SenderAddress     ElementList
	RecipientAddress  ElementList
}

func (e MatchingListEntry) matches(m *chaintypes.Message) bool {
	return e.OriginDomain.Match(domainString(m.Origin)) &&
		e.DestinationDomain.Match(domainString(m.Destination)) &&
		e.SenderAddress.Match(m.Sender.String()) &&
		e.RecipientAddress.Match(m.Recipient.String())
}

// MatchingList is a disjunction of entries: a message matches the list if
// it matches any entry, or the list has no entries (unrestricted).
type MatchingList []MatchingListEntry

// Match reports whether m matches this list.
func (l MatchingList) Match(m *chaintypes.Message) bool {
	if len(l) == 0 {
		return true
	}
	for _, e := range l {
		if e.matches(m) {
			return true
		}
	}
	return false
}

func domainString(d uint32) string {
	return strconv.FormatUint(uint64(d), 10)
}

// ServicedDestinations tracks which destination domains this relayer
// instance actually delivers to, as a set (golang-set/v2) so membership
// checks are O(1) regardless of how many chains are configured.
type ServicedDestinations struct {
	domains mapset.Set[uint32]
}

func NewServicedDestinations(domains []uint32) *ServicedDestinations {
	return &ServicedDestinations{domains: mapset.NewSet(domains...)}
}

func (s *ServicedDestinations) Serviced(domain uint32) bool {
	return s.domains.Contains(domain)
}

// Policy bundles whitelist/blacklist matching and destination-serviceability
// checks into the single predicate the processor applies per tick: apply
// whitelist/blacklist, then skip if the destination domain isn't serviced.
type Policy struct {
	Whitelist    MatchingList
	Blacklist    MatchingList
	Destinations *ServicedDestinations
}

// Allow reports whether m should be dispatched for delivery.
func (p Policy) Allow(m *chaintypes.Message) bool {
	if !p.Whitelist.Match(m) {
		return false
	}
	if len(p.Blacklist) > 0 && p.Blacklist.Match(m) {
		return false
	}
	if p.Destinations != nil && !p.Destinations.Serviced(m.Destination) {
		return false
	}
	return true
}
