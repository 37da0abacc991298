package generator

import (
	"sync"

	"topicdesk/internal/core"
)

// Failure stages recorded in an Outcome
const (
	StageSynthesis   = "synthesis"
	StagePersistence = "persistence"
)

// ClusterFailure records one cluster that did not produce a proposal
type ClusterFailure struct {
	Index int    `json:"index"`
	Theme string `json:"theme"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// ClusterWarning is a soft problem with a proposal that was still stored
type ClusterWarning struct {
	Index      int    `json:"index"`
	Theme      string `json:"theme"`
	ProposalID string `json:"proposal_id"`
	Warning    string `json:"warning"`
}

// Outcome accumulates per-cluster results of one generation run
type Outcome struct {
	ClustersFound     int              `json:"clusters_found"`
	ClustersProcessed int              `json:"clusters_processed"`
	Failures          []ClusterFailure `json:"failures"`
	Warnings          []ClusterWarning `json:"warnings,omitempty"`

	mu        sync.Mutex
	proposals []core.TopicProposal
	lastErr   error
}

func newOutcome(found int) *Outcome {
	return &Outcome{ClustersFound: found, Failures: []ClusterFailure{}}
}

func (o *Outcome) succeeded(index int, p core.TopicProposal, warning string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ClustersProcessed++
	o.proposals = append(o.proposals, p)
	if warning != "" {
		o.Warnings = append(o.Warnings, ClusterWarning{
			Index:      index,
			Theme:      p.ClusterTheme,
			ProposalID: p.ID,
			Warning:    warning,
		})
	}
}

func (o *Outcome) failed(index int, cluster core.TopicCluster, stage string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ClustersProcessed++
	o.lastErr = err
	o.Failures = append(o.Failures, ClusterFailure{
		Index: index,
		Theme: cluster.Theme,
		Stage: stage,
		Error: err.Error(),
	})
}

// Proposals returns the proposals produced so far
func (o *Outcome) Proposals() []core.TopicProposal {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]core.TopicProposal, len(o.proposals))
	copy(out, o.proposals)
	return out
}

// err returns GenerationFailedError when clusters were attempted and none succeeded
func (o *Outcome) err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ClustersProcessed > 0 && len(o.proposals) == 0 {
		return core.NewGenerationFailedError(o.ClustersProcessed, o.lastErr)
	}
	return nil
}
