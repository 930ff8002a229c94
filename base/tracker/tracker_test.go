package tracker

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	bCtx "github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/log"
	"github.com/x-xyz/nftvault/domain"
	"github.com/x-xyz/nftvault/domain/custody"
)

var (
	vaultAddr  = domain.Address("0x00000000000000000000000000000000000000aa")
	otherAddr  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	collection = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type mockDepositor struct {
	mock.Mock
}

func (m *mockDepositor) DepositAsset(ctx bCtx.Ctx, assetId domain.AssetId) (*custody.AssetRecord, error) {
	args := m.Called(assetId)
	rec, _ := args.Get(0).(*custody.AssetRecord)
	return rec, args.Error(1)
}

// fakeChain answers FilterLogs from a fixed log list and refuses ranges wider
// than maxSpan blocks.
type fakeChain struct {
	head    uint64
	logs    []types.Log
	maxSpan uint64
	queries []ethereum.FilterQuery
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.queries = append(f.queries, q)
	from, to := q.FromBlock.Uint64(), q.ToBlock.Uint64()
	if f.maxSpan > 0 && to-from+1 > f.maxSpan {
		return nil, errors.New("query returned more than 10000 results")
	}
	res := []types.Log{}
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			res = append(res, l)
		}
	}
	return res, nil
}

func transferLog(block uint64, from, to common.Address, id int64) types.Log {
	return types.Log{
		Address:     collection,
		BlockNumber: block,
		Topics: []common.Hash{
			transferSig,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(id)),
		},
	}
}

type trackerSuite struct {
	suite.Suite

	ctx       bCtx.Ctx
	chain     *fakeChain
	depositor *mockDepositor
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(trackerSuite))
}

func (s *trackerSuite) SetupTest() {
	s.ctx = bCtx.WithLogger(bCtx.Background(), log.Nop())
	s.chain = &fakeChain{head: 100}
	s.depositor = &mockDepositor{}
}

func (s *trackerSuite) newTracker(start uint64) *LogTracker {
	return NewLogTracker(&LogTrackerCfg{
		Config: Config{
			StartBlock:     start,
			FollowDistance: 5,
			MaxRange:       20,
		},
		Source:   s.chain,
		Contract: collection,
		Handler: NewDepositHandler(&DepositHandlerCfg{
			Vault:     vaultAddr,
			Depositor: s.depositor,
		}),
	})
}

func (s *trackerSuite) TestStartsAtConfirmedHead() {
	req := s.Require()
	tr := s.newTracker(0)

	req.NoError(tr.Poll(s.ctx))
	req.Equal(uint64(96), tr.NextBlock())
	req.Empty(s.chain.queries)

	s.chain.head = 110
	s.chain.logs = []types.Log{transferLog(100, otherAddr, vaultAddr.ToCommon(), 7)}
	s.depositor.On("DepositAsset", domain.AssetId(7)).Return(&custody.AssetRecord{AssetId: 7, InCustody: true}, nil).Once()

	req.NoError(tr.Poll(s.ctx))
	req.Equal(uint64(106), tr.NextBlock())
	s.depositor.AssertExpectations(s.T())

	q := s.chain.queries[0]
	req.Equal([]common.Address{collection}, q.Addresses)
	req.Equal(transferSig, q.Topics[0][0])
	req.Nil(q.Topics[1])
	req.Equal(common.BytesToHash(vaultAddr.ToCommon().Bytes()), q.Topics[2][0])
}

func (s *trackerSuite) TestFollowDistance() {
	req := s.Require()
	s.chain.logs = []types.Log{
		transferLog(12, otherAddr, vaultAddr.ToCommon(), 1),
		transferLog(99, otherAddr, vaultAddr.ToCommon(), 2),
	}
	s.depositor.On("DepositAsset", domain.AssetId(1)).Return(&custody.AssetRecord{}, nil).Once()

	tr := s.newTracker(10)
	req.NoError(tr.Poll(s.ctx))
	req.Equal(uint64(96), tr.NextBlock())
	s.depositor.AssertExpectations(s.T())
	s.depositor.AssertNotCalled(s.T(), "DepositAsset", domain.AssetId(2))
}

func (s *trackerSuite) TestSplitsRefusedRanges() {
	req := s.Require()
	s.chain.maxSpan = 6
	s.chain.logs = []types.Log{
		transferLog(11, otherAddr, vaultAddr.ToCommon(), 1),
		transferLog(25, otherAddr, vaultAddr.ToCommon(), 2),
	}
	var order []domain.AssetId
	s.depositor.On("DepositAsset", mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, args.Get(0).(domain.AssetId))
	}).Return(&custody.AssetRecord{}, nil)

	tr := s.newTracker(10)
	req.NoError(tr.Poll(s.ctx))
	req.Equal(uint64(96), tr.NextBlock())
	req.Equal([]domain.AssetId{1, 2}, order)
	for _, q := range s.chain.queries {
		req.True(q.ToBlock.Uint64() >= q.FromBlock.Uint64())
	}
}

func (s *trackerSuite) TestSkipsHandledTransfers() {
	req := s.Require()
	s.chain.logs = []types.Log{
		transferLog(11, otherAddr, vaultAddr.ToCommon(), 1),
		transferLog(12, otherAddr, vaultAddr.ToCommon(), 2),
		transferLog(13, vaultAddr.ToCommon(), otherAddr, 3),
	}
	s.depositor.On("DepositAsset", domain.AssetId(1)).Return(nil, domain.ErrAssetAlreadyInCustody).Once()
	s.depositor.On("DepositAsset", domain.AssetId(2)).Return(nil, domain.ErrAssetNotInCustody).Once()

	tr := s.newTracker(10)
	req.NoError(tr.Poll(s.ctx))
	req.Equal(uint64(96), tr.NextBlock())
	s.depositor.AssertExpectations(s.T())
}

func (s *trackerSuite) TestStopsOnDepositFailure() {
	req := s.Require()
	s.chain.logs = []types.Log{
		transferLog(11, otherAddr, vaultAddr.ToCommon(), 1),
		transferLog(45, otherAddr, vaultAddr.ToCommon(), 2),
	}
	s.depositor.On("DepositAsset", domain.AssetId(1)).Return(&custody.AssetRecord{}, nil).Once()
	s.depositor.On("DepositAsset", domain.AssetId(2)).Return(nil, errors.New("rpc down")).Once()

	tr := s.newTracker(10)
	req.Error(tr.Poll(s.ctx))
	// [10,29] and [30,49] are the first two chunks, the second one failed
	req.Equal(uint64(30), tr.NextBlock())

	s.depositor.On("DepositAsset", domain.AssetId(2)).Return(&custody.AssetRecord{}, nil).Once()
	req.NoError(tr.Poll(s.ctx))
	req.Equal(uint64(96), tr.NextBlock())
	s.depositor.AssertExpectations(s.T())
}

func TestDepositHandlerIgnoresForeignLogs(t *testing.T) {
	req := require.New(t)
	d := &mockDepositor{}
	h := NewDepositHandler(&DepositHandlerCfg{Vault: vaultAddr, Depositor: d})

	removed := transferLog(1, otherAddr, vaultAddr.ToCommon(), 1)
	removed.Removed = true
	approval := types.Log{Topics: []common.Hash{common.HexToHash("0x01")}}
	huge := transferLog(1, otherAddr, vaultAddr.ToCommon(), 0)
	huge.Topics[3] = common.BigToHash(new(big.Int).Lsh(big.NewInt(1), 70))

	err := h.ProcessEvents(bCtx.WithLogger(bCtx.Background(), log.Nop()), []types.Log{removed, approval, huge})
	req.NoError(err)
	d.AssertNotCalled(t, "DepositAsset", mock.Anything)
}
