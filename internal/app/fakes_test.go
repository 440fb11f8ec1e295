package app

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/solperks/loyalty-service/internal/domain"
	"github.com/solperks/loyalty-service/internal/ledger"
	"github.com/solperks/loyalty-service/internal/store"
	"github.com/solperks/loyalty-service/pkg/ledgerclient"
	"github.com/solperks/loyalty-service/pkg/rabbitmq"
)

// testBlockhash is 32 zero bytes in base58.
const testBlockhash = "11111111111111111111111111111111"

func testKeypair(t *testing.T) *ledger.Keypair {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	kp, err := ledger.NewKeypair(priv)
	if err != nil {
		t.Fatalf("failed to wrap keypair: %v", err)
	}
	return kp
}

type sendResult struct {
	signature string
	err       error
}

// fakeGateway is an in-memory ledgerclient.Gateway. Accounts are keyed by
// base58 address; send results are consumed in order.
type fakeGateway struct {
	accounts     map[string][]byte
	transactions map[string]*ledgerclient.TransactionRecord
	txErr        error
	sendResults  []sendResult

	blockhashCalls int
	accountCalls   []string
	txCalls        int
	sendCalls      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		accounts:     map[string][]byte{},
		transactions: map[string]*ledgerclient.TransactionRecord{},
	}
}

func (g *fakeGateway) GetLatestBlockhash(ctx context.Context) (*ledgerclient.BlockhashResult, error) {
	g.blockhashCalls++
	return &ledgerclient.BlockhashResult{Blockhash: testBlockhash, LastValidBlockHeight: 100}, nil
}

func (g *fakeGateway) GetLatestBlock(ctx context.Context) (*ledgerclient.Block, error) {
	return &ledgerclient.Block{Slot: 42, Blockhash: testBlockhash}, nil
}

func (g *fakeGateway) GetTransaction(ctx context.Context, ref string) (*ledgerclient.TransactionRecord, error) {
	g.txCalls++
	if g.txErr != nil {
		return nil, g.txErr
	}
	return g.transactions[ref], nil
}

func (g *fakeGateway) GetAccountInfo(ctx context.Context, address string) ([]byte, error) {
	g.accountCalls = append(g.accountCalls, address)
	return g.accounts[address], nil
}

func (g *fakeGateway) SendAndConfirm(ctx context.Context, signedTx []byte) (string, error) {
	g.sendCalls++
	if len(g.sendResults) == 0 {
		return "", errors.New("unexpected transaction submission")
	}
	result := g.sendResults[0]
	g.sendResults = g.sendResults[1:]
	return result.signature, result.err
}

func (g *fakeGateway) totalCalls() int {
	return g.blockhashCalls + len(g.accountCalls) + g.txCalls + g.sendCalls
}

// fakeRepo is an in-memory store.Repository tracking every interaction.
type fakeRepo struct {
	reward     *domain.RewardItem
	reserveErr error
	consumeErr error

	reserveCalls  int
	consumedAddrs []string
	createdRuns   []*domain.IssuanceRun
	advancedSteps []string
	lastPatch     store.IssuanceRunPatch
}

func (r *fakeRepo) ReserveReward(ctx context.Context, rewardType domain.RewardType) (*domain.RewardItem, error) {
	r.reserveCalls++
	if r.reserveErr != nil {
		return nil, r.reserveErr
	}
	return r.reward, nil
}

func (r *fakeRepo) MarkRewardConsumed(ctx context.Context, address string) error {
	if r.consumeErr != nil {
		return r.consumeErr
	}
	r.consumedAddrs = append(r.consumedAddrs, address)
	return nil
}

func (r *fakeRepo) CreateIssuanceRun(ctx context.Context, run *domain.IssuanceRun) error {
	r.createdRuns = append(r.createdRuns, run)
	return nil
}

func (r *fakeRepo) AdvanceIssuanceRun(ctx context.Context, runID uuid.UUID, step string, patch store.IssuanceRunPatch) error {
	r.advancedSteps = append(r.advancedSteps, step)
	r.lastPatch = patch
	return nil
}

// fakePublisher records published events without a broker.
type fakePublisher struct {
	issued    []rabbitmq.RewardIssuedEvent
	exhausted []rabbitmq.InventoryExhaustedEvent
	reconcile []rabbitmq.ReconcileRequiredEvent
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *fakePublisher) PublishRewardIssued(ctx context.Context, event rabbitmq.RewardIssuedEvent) error {
	p.issued = append(p.issued, event)
	return nil
}

func (p *fakePublisher) PublishInventoryExhausted(ctx context.Context, event rabbitmq.InventoryExhaustedEvent) error {
	p.exhausted = append(p.exhausted, event)
	return nil
}

func (p *fakePublisher) PublishReconcileRequired(ctx context.Context, event rabbitmq.ReconcileRequiredEvent) error {
	p.reconcile = append(p.reconcile, event)
	return nil
}

func (p *fakePublisher) Close() {}

// fakeRateLimiter returns a fixed count for every consume call.
type fakeRateLimiter struct {
	count      int
	retryAfter int
	err        error
	calls      int
}

func (l *fakeRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	l.calls++
	return l.count, l.retryAfter, l.err
}

// tokenAccountBytes fabricates raw holding-account data with the given unit
// balance at the layout's amount offset.
func tokenAccountBytes(amount uint64) []byte {
	data := make([]byte, 72)
	binary.LittleEndian.PutUint64(data[64:], amount)
	return data
}
