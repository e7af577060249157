package procerr

import "time"

// FallbackAction names what to do once retries for a kind are exhausted.
type FallbackAction string

const (
	FallbackCacheForLater     FallbackAction = "cache-for-later"
	FallbackAlternateEndpoint FallbackAction = "alternate-endpoint"
	FallbackSkipFile          FallbackAction = "skip-file"
	FallbackManualReview      FallbackAction = "manual-review"
	FallbackParser            FallbackAction = "fallback-parser"
	FallbackMarkForReview     FallbackAction = "mark-for-review"
	FallbackUseDefaults       FallbackAction = "use-defaults"
	FallbackGracefulDegrade   FallbackAction = "graceful-degrade"
)

// RecoveryPolicy governs retry count, delay, and fallback per error kind.
type RecoveryPolicy struct {
	MaxRetries int
	RetryDelay time.Duration
	Fallback   FallbackAction
}

var policies = map[Kind]RecoveryPolicy{
	KindNetwork:       {MaxRetries: 3, RetryDelay: 5 * time.Second, Fallback: FallbackCacheForLater},
	KindAPI:           {MaxRetries: 2, RetryDelay: 10 * time.Second, Fallback: FallbackAlternateEndpoint},
	KindFileIO:        {MaxRetries: 1, RetryDelay: 2 * time.Second, Fallback: FallbackSkipFile},
	KindOCR:           {MaxRetries: 1, RetryDelay: 0, Fallback: FallbackManualReview},
	KindParsing:       {MaxRetries: 0, RetryDelay: 0, Fallback: FallbackParser},
	KindValidation:    {MaxRetries: 0, RetryDelay: 0, Fallback: FallbackMarkForReview},
	KindConfiguration: {MaxRetries: 0, RetryDelay: 0, Fallback: FallbackUseDefaults},
	KindSystem:        {MaxRetries: 1, RetryDelay: 5 * time.Second, Fallback: FallbackGracefulDegrade},
}

// PolicyFor returns the recovery policy for a kind. Unknown kinds get
// the System policy.
func PolicyFor(kind Kind) RecoveryPolicy {
	if p, ok := policies[kind]; ok {
		return p
	}
	return policies[KindSystem]
}

// Retryable reports whether an error still has retry budget at the
// given attempt number (0-based).
func Retryable(err error, attempt int) bool {
	pe := Classify(err)
	if pe == nil {
		return false
	}
	return attempt < PolicyFor(pe.Kind).MaxRetries
}
