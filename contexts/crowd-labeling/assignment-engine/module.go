package assignmentengine

import (
	"log/slog"

	"crowdlabel/contexts/crowd-labeling/assignment-engine/adapters/memory"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/application/queries"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/application/workers"
	"crowdlabel/contexts/crowd-labeling/assignment-engine/ports"
)

type Module struct {
	Counter   queries.VoteCounter
	Quota     queries.QuotaPolicy
	Selection queries.SelectionUseCase
	Progress  queries.ProgressUseCase
	Consensus queries.ConsensusUseCase
	Jobs      queries.JobUseCase
	Refresher workers.TallyRefresher
	Store     *memory.Store
}

type Dependencies struct {
	Votes                ports.VoteStore
	Projection           ports.TallyProjection
	Publisher            ports.EventPublisher
	Clock                ports.Clock
	IDGen                ports.IDGenerator
	PrioritizeLeastVoted bool
	Logger               *slog.Logger
}

func NewModule(deps Dependencies) Module {
	counter := queries.VoteCounter{Votes: deps.Votes}
	return Module{
		Counter: counter,
		Quota:   queries.QuotaPolicy{Counter: counter},
		Selection: queries.SelectionUseCase{
			Votes: deps.Votes,
			Options: queries.SelectionOptions{
				PrioritizeLeastVoted: deps.PrioritizeLeastVoted,
			},
			Logger: deps.Logger,
		},
		Progress:  queries.ProgressUseCase{Votes: deps.Votes},
		Consensus: queries.ConsensusUseCase{Votes: deps.Votes},
		Jobs:      queries.JobUseCase{Votes: deps.Votes},
		Refresher: workers.TallyRefresher{
			Votes:      deps.Votes,
			Projection: deps.Projection,
			Publisher:  deps.Publisher,
			Clock:      deps.Clock,
			IDGen:      deps.IDGen,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule wires every port to one in-memory store. The store also
// acts as the tally projection so tests can inspect refreshed state.
func NewInMemoryModule(publisher ports.EventPublisher, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Votes:      store,
		Projection: store,
		Publisher:  publisher,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
