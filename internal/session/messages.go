package session

import (
	"github.com/pscheid92/tubepulse/internal/domain"
	"github.com/pscheid92/tubepulse/internal/sentiment"
)

// message is the mailbox interface of the Coordinator.
type message interface{ isSessionMsg() }

type baseMsg struct{}

func (baseMsg) isSessionMsg() {}

// Client commands.

type searchMsg struct {
	baseMsg
	query string
}

type profileMsg struct {
	baseMsg
	channelID string
}

type statsMsg struct {
	baseMsg
	query string
}

type pongMsg struct {
	baseMsg
}

type rejectMsg struct {
	baseMsg
	request string
	reason  string
}

// Worker replies.

type itemsBatchMsg struct {
	baseMsg
	generation uint64
	items      []domain.Item
}

type sentimentResultMsg struct {
	baseMsg
	result sentiment.Result
}

type profileResultMsg struct {
	baseMsg
	profile domain.ChannelProfile
}

type statsResultMsg struct {
	baseMsg
	query string
	table domain.WordTable
}

type workerFailureMsg struct {
	baseMsg
	worker     workerKind
	generation uint64
	err        error
}

type workerCrashMsg struct {
	baseMsg
	worker     workerKind
	generation uint64
	err        error
}

// Queries.

type snapshotMsg struct {
	baseMsg
	reply chan Snapshot
}

type workerKind string

const (
	workerPoller    workerKind = "poller"
	workerSentiment workerKind = "sentiment"
	workerProfile   workerKind = "profile"
	workerStats     workerKind = "stats"
)

// request is the client command a transient worker answers.
func (k workerKind) request() string {
	switch k {
	case workerProfile:
		return frameChannelProfile
	case workerStats:
		return frameWordStats
	default:
		return string(k)
	}
}
