package moderation

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/daemonunit42/modguard/internal/classifier"
)

// Classifier sends a message to the external classification service and
// returns its raw reply. Implemented by classifier.Client; faked in tests.
type Classifier interface {
	Classify(ctx context.Context, message string) (string, error)
}

// Pipeline evaluates messages in two tiers: the local filter decides
// explicit content on its own, and everything else is deferred to the AI
// classifier. Classifier failures resolve fail-open — moderation must never
// block normal usage because of service degradation.
type Pipeline struct {
	filter     *Filter
	classifier Classifier
}

// NewPipeline creates a Pipeline from a local filter and a classifier.
func NewPipeline(filter *Filter, classifier Classifier) *Pipeline {
	return &Pipeline{filter: filter, classifier: classifier}
}

// Evaluate returns exactly one verdict for the message. The verdict's Source
// field always reflects which stage produced the final answer.
func (p *Pipeline) Evaluate(ctx context.Context, message string) Verdict {
	// Too short to carry meaningful content; skip both tiers.
	if len([]rune(strings.TrimSpace(message))) < 2 {
		return CleanVerdict("Message too short", SourceShortMessage)
	}

	// Local filter matches are ground truth: the classifier is never
	// consulted for explicit content.
	if result := p.filter.Check(message); result.Blocked {
		return Verdict{
			Bad:      true,
			Reason:   result.Reason,
			Severity: SeverityHigh,
			Category: CategoryExplicitContent,
			Source:   SourceLocalFilter,
		}
	}

	reply, err := p.classifier.Classify(ctx, message)
	if err != nil {
		switch {
		case errors.Is(err, classifier.ErrTimeout):
			return CleanVerdict("Moderation timeout - passed", SourceTimeout)
		case errors.Is(err, classifier.ErrMalformedReply):
			logrus.Warnf("[pipeline] classifier reply unusable: %v", err)
			return CleanVerdict("Parsing error - passed", SourceParseError)
		default:
			logrus.Warnf("[pipeline] classifier request failed: %v", err)
			return CleanVerdict("Moderation error - passed", SourceAPIError)
		}
	}

	logrus.Debugf("[pipeline] classifier raw reply: %s", truncate(reply, 200))

	verdict := ParseVerdict(reply)
	verdict.Source = SourceAI
	return verdict
}
