package commands

import (
	"context"
	"errors"
	"testing"

	domainerrors "delphi/contexts/knowledge-market/question-service/domain/errors"
)

func TestCreateQuestionRegistersAndNotifies(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())

	if question.RankerID != "creator-1" || question.OwnerID != "creator-1" {
		t.Fatalf("expected ranker and owner to default to creator")
	}

	stored, err := f.questions.Questions.GetQuestion(context.Background(), question.QuestionID)
	if err != nil {
		t.Fatalf("get question failed: %v", err)
	}
	if stored.SubmissionCost != 100 || stored.MaxWinners != 3 {
		t.Fatalf("unexpected stored question %+v", stored)
	}

	registry, err := f.questions.Questions.ListRegistry(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list registry failed: %v", err)
	}
	if len(registry) != 1 || registry[0].QuestionID != question.QuestionID {
		t.Fatalf("expected one registry entry for the new question, got %+v", registry)
	}

	types := f.store.OutboxEventTypes()
	if countEventType(types, EventQuestionCreated) != 1 {
		t.Fatalf("expected one created event, got %v", types)
	}
	if countEventType(types, EventQuestionSeeded) != 0 {
		t.Fatalf("expected no seeded event without an initial seed, got %v", types)
	}
}

func TestCreateQuestionWithInitialSeed(t *testing.T) {
	f := newFixture()
	f.ledger.SetBalance("usdc", "creator-1", 500)

	cmd := defaultCreateCommand()
	cmd.InitialSeed = 400
	question := f.mustCreate(t, cmd)

	if question.TotalRewardPool != 400 {
		t.Fatalf("expected pool 400, got %d", question.TotalRewardPool)
	}
	if got := f.ledger.Balance("usdc", question.EscrowAccountID()); got != 400 {
		t.Fatalf("expected escrow balance 400, got %d", got)
	}
	if got := f.ledger.Balance("usdc", "creator-1"); got != 100 {
		t.Fatalf("expected creator balance 100, got %d", got)
	}
	if countEventType(f.store.OutboxEventTypes(), EventQuestionSeeded) != 1 {
		t.Fatalf("expected seeded event alongside created event")
	}
}

func TestCreateQuestionRejectsInvalidInput(t *testing.T) {
	f := newFixture()

	cmd := defaultCreateCommand()
	cmd.InitialSeed = -1
	if _, err := f.questions.CreateQuestion(context.Background(), cmd); !errors.Is(err, domainerrors.ErrInvalidSeedAmount) {
		t.Fatalf("expected seed amount error, got %v", err)
	}

	cmd = defaultCreateCommand()
	cmd.TokenID = " "
	if _, err := f.questions.CreateQuestion(context.Background(), cmd); !errors.Is(err, domainerrors.ErrInvalidQuestionInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}

	cmd = defaultCreateCommand()
	cmd.InitialSeed = 400
	if _, err := f.questions.CreateQuestion(context.Background(), cmd); !errors.Is(err, domainerrors.ErrLedgerTransferFailed) {
		t.Fatalf("expected transfer failure for unfunded creator, got %v", err)
	}
}

func TestSeedQuestionFromAnyFunder(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())
	f.ledger.SetBalance("usdc", "patron-1", 1000)

	total, err := f.questions.SeedQuestion(context.Background(), SeedQuestionCommand{
		QuestionID: question.QuestionID,
		FunderID:   "patron-1",
		Amount:     250,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if total != 250 {
		t.Fatalf("expected pool total 250, got %d", total)
	}
	if got := f.ledger.Balance("usdc", question.EscrowAccountID()); got != 250 {
		t.Fatalf("expected escrow balance 250, got %d", got)
	}

	if _, err := f.questions.SeedQuestion(context.Background(), SeedQuestionCommand{
		QuestionID: question.QuestionID,
		FunderID:   "patron-1",
		Amount:     0,
	}); !errors.Is(err, domainerrors.ErrInvalidSeedAmount) {
		t.Fatalf("expected seed amount error, got %v", err)
	}
	if _, err := f.questions.SeedQuestion(context.Background(), SeedQuestionCommand{
		QuestionID: "missing",
		FunderID:   "patron-1",
		Amount:     10,
	}); !errors.Is(err, domainerrors.ErrQuestionNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestAuthorizeAndRevokeSubmitter(t *testing.T) {
	f := newFixture()
	question := f.mustCreate(t, defaultCreateCommand())

	if err := f.questions.AuthorizeSubmitter(context.Background(), question.QuestionID, "stranger", "agent-1"); !errors.Is(err, domainerrors.ErrNotOwner) {
		t.Fatalf("expected owner restriction, got %v", err)
	}
	if err := f.questions.AuthorizeSubmitter(context.Background(), question.QuestionID, "creator-1", "agent-1"); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}

	stored, err := f.questions.Questions.GetQuestion(context.Background(), question.QuestionID)
	if err != nil {
		t.Fatalf("get question failed: %v", err)
	}
	if !stored.AuthorizedSubmitters["agent-1"] {
		t.Fatalf("expected agent-1 authorized")
	}

	if err := f.questions.RevokeSubmitter(context.Background(), question.QuestionID, "creator-1", "agent-1"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	stored, err = f.questions.Questions.GetQuestion(context.Background(), question.QuestionID)
	if err != nil {
		t.Fatalf("get question failed: %v", err)
	}
	if stored.AuthorizedSubmitters["agent-1"] {
		t.Fatalf("expected agent-1 revoked")
	}

	types := f.store.OutboxEventTypes()
	if countEventType(types, EventSubmitterAuthorized) != 1 || countEventType(types, EventSubmitterRevoked) != 1 {
		t.Fatalf("expected one authorize and one revoke event, got %v", types)
	}
}
