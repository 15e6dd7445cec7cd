package txengine

import (
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// ErrorClass decides what the submitter does with a failed attempt.
type ErrorClass int

const (
	Fatal ErrorClass = iota
	RetryNonceOrPrice
	RetryTimeout
)

func (c ErrorClass) String() string {
	switch c {
	case RetryNonceOrPrice:
		return "RETRYABLE_NONCE_OR_PRICE"
	case RetryTimeout:
		return "RETRYABLE_TIMEOUT"
	}
	return "FATAL"
}

// Rule maps a lower-case message substring to a class. First match wins.
type Rule struct {
	Pattern string
	Class   ErrorClass
}

var DefaultRules = []Rule{
	// "nonce too low" is usually permanent once the nonce is consumed; kept retryable on purpose.
	{"nonce too low", RetryNonceOrPrice},
	{"transaction underpriced", RetryNonceOrPrice},
	{"replacement transaction underpriced", RetryNonceOrPrice},
	{"transaction already imported", RetryNonceOrPrice},
	{"same hash was already imported", RetryNonceOrPrice},
	{"transaction was not mined within", RetryTimeout},
}

// Classify matches err against DefaultRules.
func Classify(err error) ErrorClass {
	if err == nil {
		return Fatal
	}
	return ClassifyMessage(DefaultRules, err.Error())
}

func ClassifyMessage(rules []Rule, msg string) ErrorClass {
	s := strings.ToLower(msg)
	for _, r := range rules {
		if strings.Contains(s, r.Pattern) {
			return r.Class
		}
	}
	return Fatal
}

// Backoff returns the wait after the attempt-th retryable error:
// uniform in [5, 10) * 2^attempt seconds for nonce/price races and
// [10, 20) * 2^attempt seconds for mining timeouts.
func Backoff(c ErrorClass, attempt int, r *rand.Rand) time.Duration {
	lo, hi := 5.0, 10.0
	if c == RetryTimeout {
		lo, hi = 10.0, 20.0
	}
	f := rand.Float64
	if r != nil {
		f = r.Float64
	}
	secs := (lo + f()*(hi-lo)) * math.Pow(2, float64(attempt))
	return time.Duration(secs * float64(time.Second))
}
