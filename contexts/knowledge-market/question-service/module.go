// Package questionservice wires the question market's use cases behind a
// single handler facade.
package questionservice

import (
	"log/slog"
	"time"

	httpadapter "delphi/contexts/knowledge-market/question-service/adapters/http"
	"delphi/contexts/knowledge-market/question-service/adapters/memory"
	"delphi/contexts/knowledge-market/question-service/application"
	"delphi/contexts/knowledge-market/question-service/application/commands"
	"delphi/contexts/knowledge-market/question-service/application/queries"
	"delphi/contexts/knowledge-market/question-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Ledger  *memory.Ledger
}

type Dependencies struct {
	Questions      ports.QuestionRepository
	Ledger         ports.TokenLedger
	Idempotency    ports.IdempotencyStore
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	locks := application.NewQuestionLocks()
	questionUseCase := commands.QuestionUseCase{
		Questions: deps.Questions,
		Ledger:    deps.Ledger,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Locks:     locks,
		Logger:    deps.Logger,
	}
	submitUseCase := commands.SubmitUseCase{
		Questions:      deps.Questions,
		Ledger:         deps.Ledger,
		Idempotency:    deps.Idempotency,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		Locks:          locks,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	evaluateUseCase := commands.EvaluateUseCase{
		Questions: deps.Questions,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Locks:     locks,
		Logger:    deps.Logger,
	}
	payoutUseCase := commands.PayoutUseCase{
		Questions: deps.Questions,
		Ledger:    deps.Ledger,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Locks:     locks,
		Logger:    deps.Logger,
	}
	feeConfigUseCase := commands.FeeConfigUseCase{
		Questions: deps.Questions,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Locks:     locks,
		Logger:    deps.Logger,
	}
	questionQueries := queries.QuestionQueries{
		Questions: deps.Questions,
		Clock:     deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Questions: questionUseCase,
			Submits:   submitUseCase,
			Evaluates: evaluateUseCase,
			Payouts:   payoutUseCase,
			Fees:      feeConfigUseCase,
			Views:     questionQueries,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	ledger := memory.NewLedger()
	module := NewModule(Dependencies{
		Questions:      store,
		Ledger:         ledger,
		Idempotency:    store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	module.Ledger = ledger
	return module
}
