package router

import "github.com/crosslink-relay/relayer/chaintypes"

// MetricAppContext labels a MatchingList with a human-readable application
// name so per-chain metrics can be fanned out by app, matching the config
// shape `metric_app_contexts: [(MatchingList, label)]`.
type MetricAppContext struct {
	List  MatchingList
	Label string
}

// AppLabelFor returns the first matching label for m, or "unknown" if none
// of the configured contexts match, so metrics still get a fanout bucket
// instead of being dropped.
func AppLabelFor(contexts []MetricAppContext, m *chaintypes.Message) string {
	for _, c := range contexts {
		if c.List.Match(m) {
			return c.Label
		}
	}
	return "unknown"
}
