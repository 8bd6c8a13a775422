package catalog

import (
	"strings"

	"tempest-engine/work/config"
	"tempest-engine/work/logger"
	"tempest-engine/work/types"

	"github.com/grafana/regexp"
)

// channelRule pairs a channel id with its compiled keyword matcher. Rules are
// evaluated strictly in lineup order so classification ties always resolve to the
// earlier channel.
type channelRule struct {
	channelID string
	pattern   *regexp.Regexp
}

// Classifier assigns unassigned assets to channels by keyword heuristics. The
// matchers are compiled once from the static lineup; assets matching no rule land
// on the configured default channel.
type Classifier struct {
	rules     []channelRule
	defaultID string
}

// NewClassifier compiles keyword matchers for every channel in the lineup that
// carries keywords. A channel whose keyword set fails to compile is skipped with
// a warning rather than breaking the lineup.
func NewClassifier(cfg *config.Config) *Classifier {
	c := &Classifier{defaultID: cfg.DefaultChannelID}

	for _, ch := range cfg.Channels {
		if len(ch.Keywords) == 0 {
			continue
		}
		pattern, err := compileKeywords(ch.Keywords)
		if err != nil {
			logger.Warn("{catalog/classify - NewClassifier} bad keyword set for channel %s: %v", ch.ID, err)
			continue
		}
		c.rules = append(c.rules, channelRule{channelID: ch.ID, pattern: pattern})
	}

	return c
}

// ChannelFor returns the channel id the asset classifies into: the first channel
// in lineup order whose keyword matcher hits the asset's title, description,
// category, or tags, falling back to the default channel.
func (c *Classifier) ChannelFor(asset *types.VideoAsset) string {
	text := asset.SearchText()
	for _, rule := range c.rules {
		if rule.pattern.MatchString(text) {
			return rule.channelID
		}
	}
	return c.defaultID
}

// compileKeywords builds a single case-insensitive alternation matcher for a
// keyword set. Keywords are quoted, so punctuation like "how-to" matches
// literally.
func compileKeywords(keywords []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(kw))
	}
	return regexp.Compile("(?i)(" + strings.Join(quoted, "|") + ")")
}
