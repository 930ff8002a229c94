package query

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/x-xyz/nftvault/base/ctx"
	"github.com/x-xyz/nftvault/base/database/mongoclient"
	"github.com/x-xyz/nftvault/base/metrics"
	"github.com/x-xyz/nftvault/domain"
)

var (
	mockCTX = ctx.Background()
)

const (
	mockTable = domain.Table("query_test")
	dbName    = "testdb"
)

type dummy struct {
	Id    string `bson:"_id"`
	Vault string `bson:"vault"`
	Seq   int    `bson:"seq"`
}

type querySuite struct {
	suite.Suite
	im       *impl
	mongoURI string
}

func TestQuery(t *testing.T) {
	suite.Run(t, new(querySuite))
}

func (q *querySuite) SetupSuite() {
	q.mongoURI = os.Getenv("TEST_MONGO_URI")
	if q.mongoURI == "" {
		q.T().Skip("TEST_MONGO_URI is not set")
	}
}

func (q *querySuite) SetupTest() {
	client := mongoclient.MustConnectMongoClient(mongoclient.Config{
		URI:     q.mongoURI,
		AuthDB:  "admin",
		DBName:  dbName,
		SetSafe: true,
	})
	q.im = New(client, false, metrics.Nop()).(*impl)
	q.Require().NoError(q.im.coll(mockTable).Drop(mockCTX))
}

func (q *querySuite) upsert(docs ...dummy) {
	ops := []UpsertOp{}
	for _, d := range docs {
		ops = append(ops, UpsertOp{Selector: bson.M{"_id": d.Id}, Updater: d})
	}
	_, _, err := q.im.BulkUpsert(mockCTX, mockTable, ops)
	q.Require().NoError(err)
}

func (q *querySuite) TestBulkUpsertAndSearch() {
	docs := []dummy{{"a", "0xv", 1}, {"b", "0xv", 2}, {"c", "0xv", 3}}
	q.upsert(docs...)
	// replaying the same batch leaves one document per id
	q.upsert(docs...)

	var res []dummy
	q.NoError(q.im.Search(mockCTX, mockTable, 0, 2, "-seq", bson.M{"vault": "0xv"}, &res))
	q.Equal([]dummy{{"c", "0xv", 3}, {"b", "0xv", 2}}, res)

	res = nil
	q.NoError(q.im.Search(mockCTX, mockTable, 1, 5, "seq", bson.M{"vault": "0xv"}, &res))
	q.Equal([]dummy{{"b", "0xv", 2}, {"c", "0xv", 3}}, res)

	_, _, err := q.im.BulkUpsert(mockCTX, mockTable, nil)
	q.Error(err)
}

func (q *querySuite) TestFindOne() {
	q.upsert(dummy{"a", "0xv", 1})
	q.upsert(dummy{"a", "0xv", 2})

	res := dummy{}
	q.NoError(q.im.FindOne(mockCTX, mockTable, bson.M{"vault": "0xv", "seq": 2}, &res))
	q.Equal(dummy{"a", "0xv", 2}, res)
	q.Equal(ErrNotFound, q.im.FindOne(mockCTX, mockTable, bson.M{"seq": 1}, &res))
}

func (q *querySuite) TestCheckIndex() {
	q.NoError(q.im.EnsureIndexes(mockCTX, mockTable, []mongo.IndexModel{
		{Keys: bson.D{{Key: "vault", Value: 1}, {Key: "seq", Value: -1}}},
	}))
	q.upsert(dummy{"a", "0xv", 1})

	q.im.checkIndex = true
	var res []dummy
	q.NoError(q.im.Search(mockCTX, mockTable, 0, 5, "-seq", bson.M{"vault": "0xv"}, &res))
	q.Len(res, 1)
	q.Equal(ErrCollScan, q.im.Search(mockCTX, mockTable, 0, 5, "", bson.M{"seq": 1}, &res))
}

func TestGetSortOption(t *testing.T) {
	require.New(t).Equal(bson.D{{Key: "seq", Value: -1}, {Key: "vault", Value: 1}}, getSortOption("-seq", "", "vault"))
}
